package daemon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/battos/battdiag/pkg/apikey"
	"github.com/battos/battdiag/pkg/chemistry"
	"github.com/battos/battdiag/pkg/diagerr"
	"github.com/battos/battdiag/pkg/events"
	"github.com/battos/battdiag/pkg/history"
	"github.com/battos/battdiag/pkg/version"
)

// sideEffectTimeout bounds the history write and the broker publish of one
// diagnostic, each on its own.
const sideEffectTimeout = 3 * time.Second

// diagnose binds the body of one diagnostic route, runs it and records the
// result. Recording is best effort: failures are logged, never returned.
func (s *Server) diagnose(kind string, newRequest func() diagnoseRequest) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := newRequest()
		if err := c.ShouldBindJSON(req); err != nil {
			abortWithBindError(c, err)
			return
		}

		start := time.Now()
		chem, result, err := req.run(s.engine)
		if err != nil {
			if k := diagerr.KindOf(err); k != "" {
				s.metrics.IncDomainError(kind, string(k))
			}
			abortWithDomainError(c, err)
			return
		}
		s.metrics.ObserveDiagnostic(kind, chem.String(), start)

		s.record(c.Request.Context(), c.GetString(ctxAPIKey), kind, chem, result)

		c.IndentedJSON(http.StatusOK, result)
	}
}

func (s *Server) record(ctx context.Context, key, kind string, chem chemistry.Chemistry, result any) {
	entry, err := history.NewEntry(key, kind, chem.String(), result)
	if err != nil {
		logrus.WithError(err).WithField("kind", kind).Error("failed to encode diagnostic result")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := s.history.Append(ctx, entry); err != nil {
		s.metrics.IncHistoryFailure()
		logrus.WithError(err).WithFields(logrus.Fields{
			"kind": kind,
			"key":  apikey.Mask(key),
		}).Error("failed to append history")
	}

	ev := events.DiagnosticCompletedEvent{
		ID:        entry.ID,
		Kind:      kind,
		Chemistry: entry.Chemistry,
		Result:    entry.Result,
		Ts:        entry.Timestamp.Unix(),
	}
	s.hub.PublishTo(key, events.DiagnosticCompleted, ev)

	// Brokers can be slow; the response does not wait for them.
	s.notifying.Add(1)
	go func() {
		defer s.notifying.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := s.notifier.Publish(ctx, kind, ev); err != nil {
			logrus.WithError(err).WithField("kind", kind).Warn("failed to publish notification")
		}
	}()
}

func (s *Server) getLogs(c *gin.Context) {
	entries, err := s.history.List(c.Request.Context(), c.GetString(ctxAPIKey), history.DefaultListLimit)
	if err != nil {
		_ = c.Error(err)
		abortWithStatus(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	c.IndentedJSON(http.StatusOK, gin.H{"logs": entries})
}

// streamEvents sends hub events as server-sent events. API key holders see
// their own events and broadcasts; the admin key sees everything.
func (s *Server) streamEvents(c *gin.Context) {
	admin := s.isAdmin(c)
	var key string
	if !admin {
		var ok bool
		if key, ok = s.authenticate(c); !ok {
			return
		}
	}

	ch, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()
	s.metrics.SubscriberDelta(1)
	defer s.metrics.SubscriberDelta(-1)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	// Send the headers now so clients see the stream open before the first event.
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	logrus.WithField("admin", admin).Debug("event stream opened")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-s.quit:
			return false
		case <-heartbeat.C:
			c.SSEvent("heartbeat", time.Now().Unix())
			return true
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			if ev.VisibleTo(key, admin) {
				c.SSEvent(ev.Name, string(ev.Data))
			}
			return true
		}
	})

	logrus.Debug("event stream closed")
}

type chemistryInfo struct {
	Chemistry      chemistry.Chemistry      `json:"batteryType"`
	MinTemperature float64                  `json:"minTemperature"`
	MaxTemperature float64                  `json:"maxTemperature"`
	Classes        []chemistry.VoltageClass `json:"classes"`
	Factors        *chemistry.ScaleFactors  `json:"factors,omitempty"`
}

func (s *Server) getChemistries(c *gin.Context) {
	reg := s.engine.Registry()
	out := make([]chemistryInfo, 0)
	for _, chem := range reg.Chemistries() {
		p, err := reg.Profile(chem)
		if err != nil {
			abortWithDomainError(c, err)
			return
		}
		if p.Classes == nil {
			p.Classes = []chemistry.VoltageClass{}
		}
		out = append(out, chemistryInfo{
			Chemistry:      chem,
			MinTemperature: p.MinTemperature,
			MaxTemperature: p.MaxTemperature,
			Classes:        p.Classes,
			Factors:        p.Factors,
		})
	}
	c.IndentedJSON(http.StatusOK, gin.H{"chemistries": out})
}

func (s *Server) getHealth(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

func getAPIList(c *gin.Context) {
	params := make([]apiDoc, 0, len(catalog))
	for _, d := range catalog {
		params = append(params, d.summary())
	}
	c.IndentedJSON(http.StatusOK, gin.H{"parameters": params})
}

func getAPIDetail(c *gin.Context) {
	doc, ok := lookupDoc(c.Param("parameter"))
	if !ok {
		abortWithStatus(c, http.StatusNotFound, "Parameter not found")
		return
	}
	c.IndentedJSON(http.StatusOK, doc)
}

// notFound lists the registered routes so that a client can find its way.
func notFound(router *gin.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var endpoints []string
		for _, r := range router.Routes() {
			if r.Method == http.MethodGet || r.Method == http.MethodPost {
				endpoints = append(endpoints, r.Method+" "+r.Path)
			}
		}
		sort.Strings(endpoints)

		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"detail":              "The requested resource was not found",
			"status_code":         http.StatusNotFound,
			"path":                c.Request.URL.Path,
			"available_endpoints": endpoints,
		})
	}
}

type keyInfo struct {
	Key   string `json:"key"`
	Usage int    `json:"usage"`
	Limit int    `json:"limit"`
}

type addKeyRequest struct {
	Key *string `json:"key" binding:"required"`
}

func (s *Server) listKeys(c *gin.Context) {
	snap := s.keys.Snapshot()
	limit := s.keys.MaxUsage()

	out := make([]keyInfo, 0, len(snap))
	for _, k := range s.keys.Keys() {
		out = append(out, keyInfo{Key: k, Usage: snap[k], Limit: limit})
	}
	c.IndentedJSON(http.StatusOK, gin.H{"keys": out})
}

func (s *Server) addKey(c *gin.Context) {
	var req addKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithBindError(c, err)
		return
	}

	key := strings.TrimSpace(*req.Key)
	if err := s.keys.Add(key); err != nil {
		switch {
		case errors.Is(err, apikey.ErrKeyExists):
			abortWithStatus(c, http.StatusConflict, err.Error())
		default:
			abortWithStatus(c, http.StatusBadRequest, err.Error())
		}
		return
	}
	if !s.saveKeys(c) {
		return
	}

	c.IndentedJSON(http.StatusCreated, keyInfo{Key: key, Limit: s.keys.MaxUsage()})
}

func (s *Server) removeKey(c *gin.Context) {
	if err := s.keys.Remove(c.Param("key")); err != nil {
		if errors.Is(err, apikey.ErrLastKey) {
			abortWithStatus(c, http.StatusConflict, err.Error())
			return
		}
		abortWithStatus(c, http.StatusNotFound, err.Error())
		return
	}
	if !s.saveKeys(c) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) resetKey(c *gin.Context) {
	key := c.Param("key")
	if err := s.keys.Reset(key); err != nil {
		abortWithStatus(c, http.StatusNotFound, err.Error())
		return
	}
	if !s.saveKeys(c) {
		return
	}
	s.hub.PublishTo(key, events.UsageReset, events.KeyEvent{Key: apikey.Mask(key), Ts: time.Now().Unix()})
	c.IndentedJSON(http.StatusOK, keyInfo{Key: key, Limit: s.keys.MaxUsage()})
}

func (s *Server) resetAllKeys(c *gin.Context) {
	if err := s.resetUsage(); err != nil {
		_ = c.Error(err)
		abortWithStatus(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"reset": len(s.keys.Keys())})
}

type scheduleInfo struct {
	Schedule  string     `json:"schedule"`
	NextReset *time.Time `json:"nextReset"`
	Running   bool       `json:"running"`
}

func (s *Server) resetSchedule() scheduleInfo {
	next, running := s.scheduler.Status()
	info := scheduleInfo{Schedule: s.conf.UsageResetSchedule(), Running: running}
	if !next.IsZero() {
		info.NextReset = &next
	}
	return info
}

func (s *Server) getResetSchedule(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.resetSchedule())
}

func (s *Server) skipReset(c *gin.Context) {
	if err := s.scheduler.Skip(); err != nil {
		abortWithStatus(c, http.StatusConflict, err.Error())
		return
	}
	info := s.resetSchedule()
	logrus.WithField("nextReset", info.NextReset).Info("skipped the next usage reset")
	c.IndentedJSON(http.StatusOK, info)
}

func (s *Server) saveKeys(c *gin.Context) bool {
	if err := s.persistKeys(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		_ = c.Error(err)
		abortWithStatus(c, http.StatusInternalServerError, "Internal server error")
		return false
	}
	return true
}
