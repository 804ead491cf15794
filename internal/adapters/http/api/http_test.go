package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/dachtraufe/traufe/internal/adapters/http/api"
	service "github.com/dachtraufe/traufe/internal/app"
	"github.com/dachtraufe/traufe/internal/domain/model"
	"github.com/dachtraufe/traufe/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

// Mock implementations for testing
type mockDeps struct {
	submitJob model.Job
	submitDup bool
	submitErr error

	jobs      []model.Job
	jobErr    error
	buildings []model.Building
	histogram []model.HistogramBin
	hErr      error
	exportErr error
	lastLimit int
	maxArea   float64
}

func (m *mockDeps) SubmitSelection(ctx context.Context, ring orb.Ring) (model.Job, bool, error) {
	return m.submitJob, m.submitDup, m.submitErr
}

func (m *mockDeps) Job(ctx context.Context, id string) (model.Job, error) {
	if m.jobErr != nil {
		return model.Job{}, m.jobErr
	}
	for _, j := range m.jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return model.Job{}, service.ErrJobNotFound
}

func (m *mockDeps) Jobs(ctx context.Context) []model.Job {
	return m.jobs
}

func (m *mockDeps) Buildings(ctx context.Context, jobID string, limit int) ([]model.Building, error) {
	m.lastLimit = limit
	if _, err := m.Job(ctx, jobID); err != nil {
		return nil, err
	}
	return m.buildings, nil
}

func (m *mockDeps) Histogram(ctx context.Context, jobID string) ([]model.HistogramBin, error) {
	if m.hErr != nil {
		return nil, m.hErr
	}
	return m.histogram, nil
}

func (m *mockDeps) ExportKML(ctx context.Context, w io.Writer, jobID string) error {
	if m.exportErr != nil {
		return m.exportErr
	}
	_, err := io.WriteString(w, "<kml/>")
	return err
}

func (m *mockDeps) ExportPLY(ctx context.Context, w io.Writer, jobID string) error {
	if m.exportErr != nil {
		return m.exportErr
	}
	_, err := io.WriteString(w, "ply\n")
	return err
}

func (m *mockDeps) Messages(prefs ...string) map[string]string {
	if len(prefs) > 0 && strings.HasPrefix(prefs[0], "en") {
		return map[string]string{"app.title": "Roof Eave Analysis"}
	}
	return map[string]string{"app.title": "Dachtraufen-Analyse"}
}

func (m *mockDeps) MaxArea() float64 {
	return m.maxArea
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"totalJobs": 3, "started": true}
}

func newTestServer(deps *mockDeps) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestPostArea(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDeps{
			submitJob: model.Job{ID: "job-1", State: model.JobQueued, SubmittedAt: time.Now()},
			maxArea:   50000,
		}
		srv := newTestServer(deps)
		defer srv.Close()

		body := `{"ring":[[8.54,47.37],[8.55,47.37],[8.55,47.38],[8.54,47.37]]}`

		Convey("When submitting a valid area", func() {
			resp := postJSON(t, srv.URL+"/areas", body)
			defer resp.Body.Close()

			Convey("Then the job is accepted", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
				var out map[string]interface{}
				So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
				So(out["job_id"], ShouldEqual, "job-1")
				So(out["status"], ShouldEqual, "accepted")
			})
		})

		Convey("When submitting a duplicate area", func() {
			deps.submitDup = true
			resp := postJSON(t, srv.URL+"/areas", body)
			defer resp.Body.Close()

			Convey("Then the existing job is returned with 200", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var out map[string]interface{}
				So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
				So(out["status"], ShouldEqual, "duplicate")
				So(out["duplicate"], ShouldEqual, true)
			})
		})

		Convey("When the ring has fewer than three points", func() {
			resp := postJSON(t, srv.URL+"/areas", `{"ring":[[8.54,47.37],[8.55,47.37]]}`)
			defer resp.Body.Close()

			Convey("Then the request is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When coordinates are out of range", func() {
			resp := postJSON(t, srv.URL+"/areas", `{"ring":[[200,47.37],[8.55,47.37],[8.55,47.38]]}`)
			defer resp.Body.Close()

			Convey("Then the request is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the body is not valid JSON", func() {
			resp := postJSON(t, srv.URL+"/areas", `{"ring":`)
			defer resp.Body.Close()

			Convey("Then the request is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the selection area exceeds the limit", func() {
			deps.submitErr = service.ErrAreaTooLarge
			resp := postJSON(t, srv.URL+"/areas", body)
			defer resp.Body.Close()

			Convey("Then the request is rejected with 400", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				var out map[string]interface{}
				So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
				So(out["code"], ShouldEqual, "area_too_large")
			})
		})

		Convey("When the queue is full", func() {
			deps.submitErr = service.ErrQueueFull
			resp := postJSON(t, srv.URL+"/areas", body)
			defer resp.Body.Close()

			Convey("Then the service signals backpressure", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusTooManyRequests)
			})
		})

		Convey("When using the wrong method", func() {
			resp, err := http.Get(srv.URL + "/areas")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the route is not found", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestJobRoutes(t *testing.T) {
	Convey("Given an API server with one finished job", t, func() {
		done := model.Job{
			ID:          "job-9",
			State:       model.JobDone,
			SubmittedAt: time.Now(),
			Summary:     &model.Summary{BuildingCount: 2, MinEave: 431.5, MaxEave: 445.2},
		}
		deps := &mockDeps{
			jobs: []model.Job{done},
			buildings: []model.Building{
				{ID: "B1", JobID: "job-9", EaveHeight: 431.5, Footprint: orb.Polygon{{{8.54, 47.37}, {8.55, 47.37}, {8.54, 47.38}, {8.54, 47.37}}}},
				{ID: "B2", JobID: "job-9", EaveHeight: 445.2},
			},
			histogram: []model.HistogramBin{{Lower: 430, Upper: 431, Count: 12}},
			maxArea:   50000,
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When listing jobs", func() {
			resp, err := http.Get(srv.URL + "/jobs")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then all jobs are returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var out []model.Job
				So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
				So(len(out), ShouldEqual, 1)
				So(out[0].ID, ShouldEqual, "job-9")
			})
		})

		Convey("When fetching an existing job", func() {
			resp, err := http.Get(srv.URL + "/jobs/job-9")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the job with its summary is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var out model.Job
				So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
				So(out.State, ShouldEqual, model.JobDone)
				So(out.Summary, ShouldNotBeNil)
				So(out.Summary.BuildingCount, ShouldEqual, 2)
			})
		})

		Convey("When fetching an unknown job", func() {
			resp, err := http.Get(srv.URL + "/jobs/nope")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then a not found error is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When fetching buildings", func() {
			resp, err := http.Get(srv.URL + "/jobs/job-9/buildings?limit=25")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then rows are returned and the limit is forwarded", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 25)
				var out []map[string]interface{}
				So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
				So(len(out), ShouldEqual, 2)
				So(out[0]["id"], ShouldEqual, "B1")
				So(out[0]["eave_height_m"], ShouldEqual, 431.5)
				So(out[0]["footprint"], ShouldNotBeNil)
				_, hasFootprint := out[1]["footprint"]
				So(hasFootprint, ShouldBeFalse)
			})
		})

		Convey("When the buildings limit is not a positive number", func() {
			resp, err := http.Get(srv.URL + "/jobs/job-9/buildings?limit=zero")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the request is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When fetching the histogram", func() {
			resp, err := http.Get(srv.URL + "/jobs/job-9/histogram")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then bins are returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var out []model.HistogramBin
				So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
				So(len(out), ShouldEqual, 1)
				So(out[0].Count, ShouldEqual, 12)
			})
		})

		Convey("When the histogram is not ready yet", func() {
			deps.hErr = service.ErrJobNotReady
			resp, err := http.Get(srv.URL + "/jobs/job-9/histogram")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then a conflict is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When downloading the KML export", func() {
			resp, err := http.Get(srv.URL + "/jobs/job-9/export.kml")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the file is served as an attachment", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Content-Type"), ShouldEqual, "application/vnd.google-earth.kml+xml")
				So(resp.Header.Get("Content-Disposition"), ShouldContainSubstring, "traufen-job-9.kml")
				body, err := io.ReadAll(resp.Body)
				So(err, ShouldBeNil)
				So(string(body), ShouldContainSubstring, "kml")
			})
		})

		Convey("When downloading the mesh export", func() {
			resp, err := http.Get(srv.URL + "/jobs/job-9/mesh.ply")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the file is served as an attachment", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Content-Disposition"), ShouldContainSubstring, "roofs-job-9.ply")
			})
		})

		Convey("When requesting an unknown sub-resource", func() {
			resp, err := http.Get(srv.URL + "/jobs/job-9/unknown")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the route is not found", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestMessagesAndStats(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDeps{maxArea: 50000}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When requesting the message catalog", func() {
			resp, err := http.Get(srv.URL + "/messages?lang=en")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the catalog and area limit are returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var out struct {
					Messages  map[string]string `json:"messages"`
					MaxAreaM2 float64           `json:"max_area_m2"`
				}
				So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
				So(out.Messages["app.title"], ShouldEqual, "Roof Eave Analysis")
				So(out.MaxAreaM2, ShouldEqual, 50000)
			})
		})

		Convey("When requesting stats", func() {
			resp, err := http.Get(srv.URL + "/stats")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the provider values are returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var out map[string]interface{}
				So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
				So(out["totalJobs"], ShouldEqual, 3.0)
			})
		})

		Convey("When requesting the dashboard", func() {
			resp, err := http.Get(srv.URL + "/dashboard")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the HTML page is served", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				body, err := io.ReadAll(resp.Body)
				So(err, ShouldBeNil)
				So(string(body), ShouldContainSubstring, "Dashboard")
			})
		})

		Convey("When probing health", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the metrics endpoint answers", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			})
		})
	})
}
