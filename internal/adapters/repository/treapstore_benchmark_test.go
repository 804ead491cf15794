package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/dachtraufe/traufe/internal/domain/model"
)

func seedStore(b *testing.B, s *TreapStore, jobID string, n int) {
	b.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, _ = s.Put(ctx, model.Building{
			ID:         fmt.Sprintf("b-%06d", i),
			JobID:      jobID,
			EaveHeight: 400 + float64(i%1000)*0.25,
		})
	}
}

func BenchmarkTreapStorePut(b *testing.B) {
	ctx := context.Background()
	s := NewTreapStore(ctx)
	defer func() { _ = s.Close() }()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Put(ctx, model.Building{
			ID:         fmt.Sprintf("b-%08d", i),
			JobID:      "bench",
			EaveHeight: 400 + float64(i%1000)*0.25,
		})
	}
}

func BenchmarkTreapStoreLowestN(b *testing.B) {
	for _, size := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("size-%d", size), func(b *testing.B) {
			ctx := context.Background()
			s := NewTreapStore(ctx)
			defer func() { _ = s.Close() }()
			seedStore(b, s, "bench", size)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = s.LowestN(ctx, "bench", 50)
			}
		})
	}
}
