package engine

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/talgya/tausaga/internal/entropy"
	"github.com/talgya/tausaga/internal/history"
	"github.com/talgya/tausaga/internal/island"
	"github.com/talgya/tausaga/internal/topography"
)

// ErrWorkerStopped is returned when a request reaches a worker that has exited.
var ErrWorkerStopped = errors.New("engine: island worker stopped")

// Command is the fixed vocabulary an island worker understands.
type Command uint8

const (
	CmdAdvanceYear Command = iota
	CmdDumpStatus
	CmdPlotRequest
	CmdStop
)

var commandNames = [...]string{"advance-year", "dump-status", "plot-request", "stop"}

func (c Command) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return "unknown"
}

// Request is one command sent to a worker.
type Request struct {
	Cmd   Command
	Year  int
	Reply chan<- Reply
}

// Reply carries the outcome of a Request.
type Reply struct {
	Island string
	Cmd    Command
	Year   int // for advance-year, the shared year after the rendezvous
	Size   int
	Births int
	Deaths int

	Villages  map[string]int        // dump-status
	Series    []history.GrowthPoint // plot-request
	Intercept float64
	Slope     float64
	Path      string
	Err       error
}

// Worker owns one island for the length of a playback. Nothing else touches
// the island's History while the worker runs.
type Worker struct {
	Island   *island.Island
	Villages []topography.Village

	src      *entropy.Source
	clock    *YearClock
	metrics  *Metrics
	plotDir  string
	requests chan Request
	done     chan struct{}

	next  int // year the running head count covers up to (exclusive)
	count int // births minus deaths recorded before next
}

// NewWorker creates a worker for an island whose History is already built.
func NewWorker(is *island.Island, villages []topography.Village, clock *YearClock, metrics *Metrics, plotDir string, src *entropy.Source) *Worker {
	w := &Worker{
		Island:   is,
		Villages: villages,
		src:      src,
		clock:    clock,
		metrics:  metrics,
		plotDir:  plotDir,
		requests: make(chan Request, 1),
		done:     make(chan struct{}),
	}
	w.resetCount(is.History.StartingYear())
	return w
}

// Submit queues a request for the worker.
func (w *Worker) Submit(ctx context.Context, req Request) error {
	select {
	case <-w.done:
		return ErrWorkerStopped
	default:
	}
	select {
	case w.requests <- req:
		return nil
	case <-w.done:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Run serves requests until a stop command arrives or ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	slog.Debug("island worker started", "island", w.Island.Name)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.requests:
			reply := w.handle(ctx, req)
			if req.Reply != nil {
				req.Reply <- reply
			}
			if req.Cmd == CmdStop {
				slog.Debug("island worker stopped", "island", w.Island.Name)
				return
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, req Request) Reply {
	reply := Reply{Island: w.Island.Name, Cmd: req.Cmd, Year: req.Year}
	switch req.Cmd {
	case CmdAdvanceYear:
		w.advance(ctx, req.Year, &reply)
	case CmdDumpStatus:
		w.dumpStatus(req.Year, &reply)
	case CmdPlotRequest:
		w.plot(&reply)
	case CmdStop:
	default:
		reply.Err = fmt.Errorf("engine: unknown command %d", req.Cmd)
	}
	return reply
}

// advance plays one year back and waits for the other islands.
func (w *Worker) advance(ctx context.Context, year int, reply *Reply) {
	h := w.Island.History
	if year != w.next {
		w.resetCount(year)
	}
	reply.Births = h.Births(year)
	reply.Deaths = h.Deaths(year)
	w.count += reply.Births - reply.Deaths
	w.next = year + 1
	reply.Size = w.count

	w.metrics.Population.WithLabelValues(w.Island.Name).Set(float64(w.count))
	w.metrics.Births.WithLabelValues(w.Island.Name).Add(float64(reply.Births))
	w.metrics.Deaths.WithLabelValues(w.Island.Name).Add(float64(reply.Deaths))

	shared, err := w.clock.Arrive(ctx)
	reply.Year = shared
	reply.Err = err
}

// resetCount recomputes the running head count over every year before year.
func (w *Worker) resetCount(year int) {
	h := w.Island.History
	w.count = 0
	for _, y := range h.Years() {
		if y >= year {
			break
		}
		w.count += h.Births(y) - h.Deaths(y)
	}
	w.next = year
}

// dumpStatus reconstructs the island at year and spreads it over the villages.
func (w *Worker) dumpStatus(year int, reply *Reply) {
	h := w.Island.History
	pop, err := h.Reconstruct(year)
	if err != nil {
		reply.Err = fmt.Errorf("%s: reconstruct %d: %w", w.Island.Name, year, err)
		return
	}
	reply.Size = pop.Len()
	reply.Births = h.Births(year)
	reply.Deaths = h.Deaths(year)

	if len(w.Villages) > 0 {
		assign, err := topography.Settle(pop, w.Villages, w.src)
		if err != nil {
			reply.Err = err
			return
		}
		reply.Villages = topography.Breakdown(assign, w.Villages)
		for _, v := range w.Villages {
			w.metrics.Villages.WithLabelValues(w.Island.Name, v.Name).Set(float64(reply.Villages[v.Name]))
		}
	}
	slog.Info("island status", "island", w.Island.Name, "year", year, "size", reply.Size,
		"births", reply.Births, "deaths", reply.Deaths, "villages", len(reply.Villages))
	slog.Debug("island cohorts", "island", w.Island.Name, "population", pop.String())
}

// plot computes the growth dataset and writes it as CSV when a directory is set.
func (w *Worker) plot(reply *Reply) {
	h := w.Island.History
	reply.Series = h.GrowthSeries()
	intercept, slope, err := h.GrowthTrend()
	hasTrend := err == nil
	if err != nil && !errors.Is(err, history.ErrNotEnoughData) {
		reply.Err = err
		return
	}
	reply.Intercept, reply.Slope = intercept, slope
	if w.plotDir == "" {
		return
	}
	path, err := writeGrowthCSV(w.plotDir, w.Island.Name, reply.Series, intercept, slope, hasTrend)
	if err != nil {
		reply.Err = err
		return
	}
	reply.Path = path
	slog.Info("growth plot written", "island", w.Island.Name, "path", path, "points", len(reply.Series))
}

func writeGrowthCSV(dir, name string, series []history.GrowthPoint, intercept, slope float64, hasTrend bool) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create plot dir: %w", err)
	}
	path := filepath.Join(dir, name+"-growth.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"year", "net", "trend"}); err != nil {
		return "", err
	}
	for _, p := range series {
		trend := ""
		if hasTrend {
			trend = strconv.FormatFloat(intercept+slope*float64(p.Year), 'f', 4, 64)
		}
		if err := cw.Write([]string{strconv.Itoa(p.Year), strconv.Itoa(p.Net), trend}); err != nil {
			return "", err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
