package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/oriys/weft/internal/luaconv"
)

// RegisterFS registers the fs.read/fs.write builtin plugin, gated by a
// fs.read/fs.write capability's params.path restriction and confined to
// sandboxRoot (the empty string means no sandbox). The calling convention
// is capability doc first, then operation args; the path check mirrors
// the restriction lattice's own "path" rule ("equal, or a descendant").
func RegisterFS(r *Registry, sandboxRoot string) {
	r.Register("fs.read", func(L *lua.LState, callerID int64) int {
		cap := luaconv.GetTable(L, 1)
		path := luaconv.GetString(L, 2)

		resolved, err := checkFSCapability(cap, callerID, "fs.read", path, sandboxRoot)
		if err != nil {
			L.RaiseError("fs.read: %v", err)
			return 0
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			L.RaiseError("fs.read: %v", err)
			return 0
		}
		L.Push(lua.LString(data))
		return 1
	})

	r.Register("fs.write", func(L *lua.LState, callerID int64) int {
		cap := luaconv.GetTable(L, 1)
		path := luaconv.GetString(L, 2)
		content := luaconv.GetString(L, 3)

		resolved, err := checkFSCapability(cap, callerID, "fs.write", path, sandboxRoot)
		if err != nil {
			L.RaiseError("fs.write: %v", err)
			return 0
		}
		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			L.RaiseError("fs.write: %v", err)
			return 0
		}
		if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
			L.RaiseError("fs.write: %v", err)
			return 0
		}
		L.Push(lua.LBool(true))
		return 1
	})
}

// checkFSCapability validates cap's owner/kind/path restriction against
// requestedPath and returns the sandbox-joined filesystem path to operate
// on.
func checkFSCapability(cap map[string]any, callerID int64, requiredKind, requestedPath, sandboxRoot string) (string, error) {
	if cap == nil {
		return "", fmt.Errorf("missing capability argument")
	}
	ownerID, _ := cap["owner_id"].(float64)
	if int64(ownerID) != callerID {
		return "", fmt.Errorf("capability not owned by caller %d", callerID)
	}
	kind, _ := cap["kind"].(string)
	if kind != requiredKind && !(strings.HasSuffix(kind, ".*") && strings.HasPrefix(requiredKind, strings.TrimSuffix(kind, "*"))) {
		return "", fmt.Errorf("capability kind %q does not grant %q", kind, requiredKind)
	}
	params, _ := cap["params"].(map[string]any)
	allowedPath, _ := params["path"].(string)
	if allowedPath != "" {
		normalized := strings.TrimSuffix(allowedPath, "/") + "/"
		if requestedPath != allowedPath && !strings.HasPrefix(requestedPath, normalized) {
			return "", fmt.Errorf("path %q outside capability path %q", requestedPath, allowedPath)
		}
	}

	if sandboxRoot == "" {
		return requestedPath, nil
	}
	joined := filepath.Join(sandboxRoot, requestedPath)
	if !strings.HasPrefix(joined, filepath.Clean(sandboxRoot)+string(filepath.Separator)) && joined != filepath.Clean(sandboxRoot) {
		return "", fmt.Errorf("path %q escapes sandbox root", requestedPath)
	}
	return joined, nil
}
