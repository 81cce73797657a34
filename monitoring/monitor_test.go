package monitoring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/davidrt/config"
	"github.com/sarchlab/davidrt/core"
	"github.com/sarchlab/davidrt/driver/simdriver"
	"github.com/sarchlab/davidrt/stream"
	"github.com/sarchlab/davidrt/task"
)

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		sc     *stream.Context
		s0, s1 *stream.Stream
		server *httptest.Server
	)

	get := func(path string) (int, []byte) {
		rsp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())

		return rsp.StatusCode, body
	}

	BeforeEach(func() {
		cfg := config.Default()
		cfg.RingDepth = 8
		cfg.MaxSqePerTask = 4
		cfg.CaptureReserved = 2

		rt := core.MakeBuilder().
			WithConfig(cfg).
			WithLogWriter(io.Discard).
			Build("Runtime")
		DeferCleanup(func() { _ = rt.Close() })

		dev, err := rt.AddDevice(simdriver.MakeBuilder().Build("Device[0]"), 0, 0)
		Expect(err).NotTo(HaveOccurred())

		sc = stream.NewContext(rt, dev)
		s0, err = sc.CreateStream()
		Expect(err).NotTo(HaveOccurred())
		s1, err = sc.CreateStream()
		Expect(err).NotTo(HaveOccurred())

		for range 2 {
			_, err = s1.Submit(context.Background(), task.PlaceHolder{})
			Expect(err).NotTo(HaveOccurred())
		}

		m = NewMonitor().WithProfileTime(10 * time.Millisecond)
		m.RegisterContext(sc)
		m.RegisterStream(s0)

		server = httptest.NewServer(m.Handler())
		DeferCleanup(server.Close)
	})

	It("should list every stream once", func() {
		code, body := get("/api/list_streams")
		Expect(code).To(Equal(http.StatusOK))

		var names []string
		Expect(json.Unmarshal(body, &names)).To(Succeed())
		Expect(names).To(Equal([]string{s0.Name(), s1.Name()}))
	})

	It("should pick up streams created later", func() {
		s2, err := sc.CreateStream()
		Expect(err).NotTo(HaveOccurred())

		_, body := get("/api/list_streams")

		var names []string
		Expect(json.Unmarshal(body, &names)).To(Succeed())
		Expect(names).To(ContainElement(s2.Name()))
	})

	It("should serialize a stream", func() {
		code, body := get("/api/stream/" + s1.Name())

		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring(s1.Name()))
	})

	It("should return 404 for unknown streams", func() {
		code, _ := get("/api/stream/Nothing")

		Expect(code).To(Equal(http.StatusNotFound))
	})

	It("should sort rings by fill", func() {
		code, body := get("/api/hangdetector/rings?sort=level")
		Expect(code).To(Equal(http.StatusOK))

		var levels []ringLevel
		Expect(json.Unmarshal(body, &levels)).To(Succeed())
		Expect(levels).To(HaveLen(2))
		Expect(levels[0].Stream).To(Equal(s1.Name()))
		Expect(levels[0].Level).To(Equal(2))
		Expect(levels[0].Cap).To(Equal(7))
		Expect(levels[1].Level).To(Equal(0))
	})

	It("should page rings", func() {
		_, body := get("/api/hangdetector/rings?limit=1&offset=1")

		var levels []ringLevel
		Expect(json.Unmarshal(body, &levels)).To(Succeed())
		Expect(levels).To(HaveLen(1))
		Expect(levels[0].Stream).To(Equal(s0.Name()))
	})

	It("should reject invalid ring queries", func() {
		code, _ := get("/api/hangdetector/rings?sort=name")
		Expect(code).To(Equal(http.StatusBadRequest))

		code, _ = get("/api/hangdetector/rings?limit=-1")
		Expect(code).To(Equal(http.StatusBadRequest))
	})

	It("should report progress bars", func() {
		bar := m.CreateProgressBar("Tasks", 10)
		bar.IncrementInProgress(4)
		bar.MoveInProgressToFinished(3)

		_, body := get("/api/progress")

		var bars []ProgressBarState
		Expect(json.Unmarshal(body, &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("Tasks"))
		Expect(bars[0].Finished).To(Equal(uint64(3)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)
		_, body = get("/api/progress")
		Expect(string(body)).To(Equal("[]"))
	})

	It("should report process resources", func() {
		code, body := get("/api/resource")
		Expect(code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal(body, &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the web page", func() {
		code, body := get("/")

		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(HavePrefix("<!DOCTYPE html>"))
	})
})

var _ = Describe("sortAndSelect", func() {
	levels := func() []ringLevel {
		return []ringLevel{
			{Stream: "A", Level: 2, Cap: 4, Percent: 0.5},
			{Stream: "B", Level: 3, Cap: 12, Percent: 0.25},
			{Stream: "C", Level: 1, Cap: 2, Percent: 0.5},
		}
	}

	names := func(ls []ringLevel) []string {
		out := make([]string, 0, len(ls))
		for _, l := range ls {
			out = append(out, l.Stream)
		}

		return out
	}

	It("should sort by percent then level", func() {
		Expect(names(sortAndSelect(levels(), "percent", 0, 0))).
			To(Equal([]string{"A", "C", "B"}))
	})

	It("should sort by level then percent", func() {
		Expect(names(sortAndSelect(levels(), "level", 0, 0))).
			To(Equal([]string{"B", "A", "C"}))
	})

	It("should clamp offsets past the end", func() {
		Expect(sortAndSelect(levels(), "level", 2, 5)).To(BeEmpty())
	})
})
