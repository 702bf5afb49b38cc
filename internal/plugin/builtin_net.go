package plugin

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/oriys/weft/internal/luaconv"
)

// RegisterNet registers the net.get builtin plugin, gated by a net.get
// capability whose params.domain restricts which host the request may
// target (equal to the allowed domain, or a subdomain of it).
func RegisterNet(r *Registry) {
	client := &http.Client{Timeout: 10 * time.Second}

	r.Register("net.get", func(L *lua.LState, callerID int64) int {
		cap := luaconv.GetTable(L, 1)
		target := luaconv.GetString(L, 2)

		if err := checkNetCapability(cap, callerID, target); err != nil {
			L.RaiseError("net.get: %v", err)
			return 0
		}

		resp, err := client.Get(target)
		if err != nil {
			L.RaiseError("net.get: %v", err)
			return 0
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			L.RaiseError("net.get: %v", err)
			return 0
		}
		L.Push(lua.LString(body))
		L.Push(lua.LNumber(resp.StatusCode))
		return 2
	})
}

func checkNetCapability(cap map[string]any, callerID int64, target string) error {
	if cap == nil {
		return fmt.Errorf("missing capability argument")
	}
	ownerID, _ := cap["owner_id"].(float64)
	if int64(ownerID) != callerID {
		return fmt.Errorf("capability not owned by caller %d", callerID)
	}
	kind, _ := cap["kind"].(string)
	if kind != "net.get" {
		return fmt.Errorf("capability kind %q does not grant net.get", kind)
	}
	params, _ := cap["params"].(map[string]any)
	allowedDomain, _ := params["domain"].(string)
	if allowedDomain == "" {
		return nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", target, err)
	}
	host := u.Hostname()
	if host != allowedDomain && !strings.HasSuffix(host, "."+allowedDomain) {
		return fmt.Errorf("domain %q outside capability domain %q", host, allowedDomain)
	}
	return nil
}
