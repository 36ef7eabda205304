package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/taskhive/backend/internal/models"
)

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAudit(ctx context.Context, entry *models.ActivityLog)
}

const maxAuditBody = 2000

// AuditLog records write operations on workspace routes once the handler has
// run. Requests without a workspace-scoped access are not recorded.
func AuditLog(recorder AuditRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut &&
			method != http.MethodPatch && method != http.MethodDelete {
			c.Next()
			return
		}

		var bodySnippet string
		if c.Request.Body != nil {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			bodySnippet = maskSensitiveFields(bodyBytes)
		}

		c.Next()

		access := AccessFrom(c)
		if access == nil || access.Workspace == nil {
			return
		}

		status := c.Writer.Status()
		resource, action := parseRouteInfo(c.FullPath(), method)
		extra, _ := json.Marshal(map[string]interface{}{
			"method": method,
			"path":   c.Request.URL.Path,
			"status": status,
			"body":   bodySnippet,
		})

		recorder.RecordAudit(c.Request.Context(), &models.ActivityLog{
			WorkspaceID: access.Workspace.ID,
			UserID:      access.UserID(),
			Action:      "audit." + resource + "." + action,
			Message:     formatAuditMessage(access.User().Email, method, c.Request.URL.Path, status),
			IP:          c.ClientIP(),
			Extra:       string(extra),
		})
	}
}

// parseRouteInfo extracts the resource and verb from a route pattern.
// "/api/workspaces/:workspaceId/tasks/:taskId" + PATCH -> "tasks", "update"
func parseRouteInfo(fullPath, method string) (resource, action string) {
	path := strings.TrimPrefix(fullPath, "/api/workspaces/:"+WorkspaceParam)
	resource = "workspace"
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg != "" && !strings.HasPrefix(seg, ":") {
			resource = seg
			break
		}
	}

	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPut, http.MethodPatch:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	default:
		action = strings.ToLower(method)
	}
	return resource, action
}

func formatAuditMessage(actor, method, path string, status int) string {
	var b strings.Builder
	b.WriteString("[Audit] ")
	b.WriteString(actor)
	b.WriteString(" ")
	b.WriteString(method)
	b.WriteString(" ")
	b.WriteString(path)
	if status >= 200 && status < 300 {
		b.WriteString(" OK")
	} else {
		b.WriteString(" Failed")
	}
	return b.String()
}

var sensitiveWords = []string{"password", "secret", "token", "signature"}

// maskSensitiveFields replaces the values of sensitive keys in a JSON body,
// at any depth. Bodies that are not JSON are dropped.
func maskSensitiveFields(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return "[non-JSON body omitted]"
	}
	masked, err := json.Marshal(maskValue(v))
	if err != nil {
		return ""
	}
	if len(masked) > maxAuditBody {
		return string(masked[:maxAuditBody]) + "...[truncated]"
	}
	return string(masked)
}

func maskValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, inner := range val {
			if isSensitiveKey(k) {
				val[k] = "***"
				continue
			}
			val[k] = maskValue(inner)
		}
		return val
	case []interface{}:
		for i, inner := range val {
			val[i] = maskValue(inner)
		}
		return val
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, word := range sensitiveWords {
		if strings.Contains(key, word) {
			return true
		}
	}
	return false
}
