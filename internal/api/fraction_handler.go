package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"jetfakes/domain/core"
	"jetfakes/domain/fraction"
	"jetfakes/domain/sample"
	"jetfakes/internal"
)

// SetLoader resolves the stored runs of a channel/period. suffix may be
// empty when the backend holds a single run per channel/period.
type SetLoader interface {
	LatestRun(ctx context.Context, channel, period, suffix string) (*fraction.RunInfo, error)
	LoadRun(ctx context.Context, channel, period, suffix string, runID core.RunID) (*fraction.Set, *fraction.RunInfo, error)
}

// FractionHandler serves read-only fraction lookups
type FractionHandler struct {
	loader SetLoader
	logger *internal.Logger

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	set  *fraction.Set
	info *fraction.RunInfo
}

// NewFractionHandler creates a handler. Each request resolves the newest run;
// the surfaces of that run are cached until a newer run replaces it.
func NewFractionHandler(loader SetLoader, logger *internal.Logger) *FractionHandler {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &FractionHandler{loader: loader, logger: logger, cache: make(map[string]cachedSet)}
}

// RunResponse describes one stored run
type RunResponse struct {
	Run        *fraction.RunInfo  `json:"run"`
	Summaries  []fraction.Summary `json:"summaries"`
	Clamps     int                `json:"clamped_bins"`
	Degenerate int                `json:"degenerate_bins"`
}

// SurfaceResponse is one surface as a bin grid
type SurfaceResponse struct {
	Key        string         `json:"key"`
	XEdges     []float64      `json:"x_edges"`
	YEdges     []float64      `json:"y_edges"`
	Values     [][]float64    `json:"values"`
	Errors     [][]float64    `json:"errors"`
	Degenerate []histogramBin `json:"degenerate"`
}

type histogramBin struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// GetRun returns run metadata and integral summaries
func (h *FractionHandler) GetRun(c *gin.Context) {
	set, info, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, RunResponse{
		Run:        info,
		Summaries:  set.Summaries,
		Clamps:     len(set.Clamps),
		Degenerate: len(set.Degenerate),
	})
}

// Lookup returns the fractions for one event. The category comes from njets
// and mjj unless given explicitly.
func (h *FractionHandler) Lookup(c *gin.Context) {
	set, _, ok := h.load(c)
	if !ok {
		return
	}

	visMass, err := floatQuery(c, "vis_mass", true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	njets, err := floatQuery(c, "njets", true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mjj, err := floatQuery(c, "mjj", false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var result fraction.Lookup
	if raw := c.Query("category"); raw != "" {
		cat, perr := sample.ParseCategory(raw)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
			return
		}
		result, err = set.Lookup(cat, visMass, njets)
	} else {
		result, err = set.LookupEvent(visMass, njets, mjj)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetSurface returns one surface as a grid, x bins as rows
func (h *FractionHandler) GetSurface(c *gin.Context) {
	set, _, ok := h.load(c)
	if !ok {
		return
	}
	cat, err := sample.ParseCategory(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := sample.ParseGroup(c.Param("group"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	surface, err := set.Surface(g, cat)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := SurfaceResponse{
		Key:        fraction.Key(g, cat),
		XEdges:     surface.XAxis().Edges(),
		YEdges:     surface.YAxis().Edges(),
		Degenerate: []histogramBin{},
	}
	for ix := 0; ix < surface.XAxis().NBins(); ix++ {
		values := make([]float64, surface.YAxis().NBins())
		errs := make([]float64, surface.YAxis().NBins())
		for iy := range values {
			values[iy] = surface.At(ix, iy)
			errs[iy] = surface.ErrorAt(ix, iy)
		}
		resp.Values = append(resp.Values, values)
		resp.Errors = append(resp.Errors, errs)
	}
	for _, b := range surface.Degenerate() {
		resp.Degenerate = append(resp.Degenerate, histogramBin{X: b.X, Y: b.Y})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FractionHandler) load(c *gin.Context) (*fraction.Set, *fraction.RunInfo, bool) {
	channel, period, suffix := c.Param("channel"), c.Param("period"), c.Query("suffix")
	key := channel + "/" + period + "/" + suffix

	ctx := c.Request.Context()
	latest, err := h.loader.LatestRun(ctx, channel, period, suffix)
	if err != nil {
		h.fail(c, err)
		return nil, nil, false
	}

	h.mu.RLock()
	cached, ok := h.cache[key]
	h.mu.RUnlock()
	if ok && cached.info.RunID == latest.RunID {
		return cached.set, cached.info, true
	}

	set, info, err := h.loader.LoadRun(ctx, channel, period, suffix, latest.RunID)
	if err != nil {
		h.fail(c, err)
		return nil, nil, false
	}
	h.mu.Lock()
	h.cache[key] = cachedSet{set: set, info: info}
	h.mu.Unlock()
	h.logger.Debug("[API] cached fractions %s (run %s)", key, info.RunID)
	return set, info, true
}

func (h *FractionHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsNotFoundError(err):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrOutOfRange):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("[API] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func floatQuery(c *gin.Context, name string, required bool) (float64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		if required {
			return 0, errors.New("missing query parameter " + name)
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("query parameter " + name + " is not a number")
	}
	return v, nil
}
