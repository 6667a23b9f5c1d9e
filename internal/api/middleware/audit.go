package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gymmaster/internal/audit"
)

const (
	auditOldValuesKey = "audit_old_values"
	auditActorKey     = "audit_actor"
	auditEntityIDKey  = "audit_entity_id"

	auditBodyLimit = 64 << 10
)

// bodyRecorder keeps a bounded copy of the response so the entity id of a
// created record can be read back after the handler ran.
type bodyRecorder struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bodyRecorder) Write(data []byte) (int, error) {
	if room := auditBodyLimit - w.buf.Len(); room > 0 {
		if len(data) > room {
			w.buf.Write(data[:room])
		} else {
			w.buf.Write(data)
		}
	}
	return w.ResponseWriter.Write(data)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Audit records successful mutations of the route's entity. Persistence is
// handed to the recorder and never affects the response.
func Audit(recorder *audit.Recorder, route audit.Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil {
			c.Next()
			return
		}
		if _, ok := route.ActionFor(c.Request.Method); !ok || audit.Excluded(c.Request.URL.Path) {
			c.Next()
			return
		}

		body := bufferRequestBody(c)

		writer := &bodyRecorder{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		if !audit.ShouldRecord(c.Request.Method, c.Request.URL.Path, c.Writer.Status()) {
			return
		}
		action, _ := route.ActionFor(c.Request.Method)

		entry := audit.Entry{
			UserID:    auditActor(c),
			Action:    action,
			Entity:    route.Entity,
			EntityID:  auditEntityID(c, writer.buf.Bytes()),
			NewValues: decodeAuditBody(body),
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			At:        time.Now().UTC(),
		}
		if old, ok := c.Get(auditOldValuesKey); ok {
			entry.OldValues, _ = old.(map[string]interface{})
		}

		recorder.Enqueue(entry)
	}
}

// SetAuditOldValues stashes the state of the record before the handler changed it.
func SetAuditOldValues(c *gin.Context, before any) {
	if values := toAuditMap(before); values != nil {
		c.Set(auditOldValuesKey, values)
	}
}

// SetAuditActor names the actor on routes that run without a token, like login.
func SetAuditActor(c *gin.Context, userID uuid.UUID) {
	c.Set(auditActorKey, userID)
}

// SetAuditEntityID is used when neither the response nor the path carries the id.
func SetAuditEntityID(c *gin.Context, id string) {
	c.Set(auditEntityIDKey, id)
}

func auditActor(c *gin.Context) *uuid.UUID {
	if id, ok := CurrentUserID(c); ok {
		return &id
	}
	if raw, ok := c.Get(auditActorKey); ok {
		if id, ok := raw.(uuid.UUID); ok && id != uuid.Nil {
			return &id
		}
	}
	return nil
}

func auditEntityID(c *gin.Context, responseBody []byte) *string {
	var envelope struct {
		Data struct {
			ID any `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(responseBody, &envelope); err == nil && envelope.Data.ID != nil {
		id := fmt.Sprint(envelope.Data.ID)
		return &id
	}
	if id := c.Param("id"); id != "" {
		return &id
	}
	if raw, ok := c.Get(auditEntityIDKey); ok {
		if id, ok := raw.(string); ok && id != "" {
			return &id
		}
	}
	return nil
}

// bufferRequestBody reads the whole body and hands the handler an identical
// copy. A read error (for example BodyLimit tripping) is replayed to the
// handler after the bytes that were read.
func bufferRequestBody(c *gin.Context) []byte {
	if c.Request.Body == nil {
		return nil
	}
	original := c.Request.Body
	body, err := io.ReadAll(original)
	if err != nil {
		c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), errReader{err}))
		return nil
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// decodeAuditBody skips bodies over auditBodyLimit; only the stored values are
// capped, never what the handler receives.
func decodeAuditBody(raw []byte) map[string]interface{} {
	if len(raw) > auditBodyLimit {
		return nil
	}
	return decodeObject(raw)
}

// BodyLimit caps request bodies for every route.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func decodeObject(raw []byte) map[string]interface{} {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func toAuditMap(value any) map[string]interface{} {
	if value == nil {
		return nil
	}
	if m, ok := value.(map[string]interface{}); ok {
		return m
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return decodeObject(raw)
}
