package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSwaggerHandler(t *testing.T) {
	Convey("Given a swagger handler", t, func() {
		ctx := context.Background()
		mux := http.NewServeMux()
		Register(ctx, mux)

		Convey("When requesting the docs page", func() {
			req := httptest.NewRequest("GET", "/api-docs", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the ReDoc page is served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(w.Body.String(), ShouldContainSubstring, "Redoc.init")
			})
		})

		Convey("When requesting the OpenAPI spec", func() {
			req := httptest.NewRequest("GET", "/openapi.yaml", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the spec is served as YAML", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "yaml")
				So(w.Body.String(), ShouldContainSubstring, "openapi: 3.0.3")
				So(w.Body.String(), ShouldContainSubstring, "/areas")
				So(w.Body.String(), ShouldContainSubstring, "/jobs/{jobId}/export.kml")
			})
		})

		Convey("When registering with a nil mux", func() {
			Convey("Then it should panic", func() {
				So(func() { Register(ctx, nil) }, ShouldPanic)
			})
		})
	})
}
