package relayd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/nostrkit/relayd/o11y"
)

// workspace is the ephemeral directory tree backing one relay: the rendered
// config file, the relay's database directory and the captured log file.
// Every relay gets its own workspace, concurrent instances never share
// files.
type workspace struct {
	dir        string
	configFile string
	dataDir    string
	logFile    string
}

func newWorkspace() (*workspace, error) {
	dir, err := os.MkdirTemp("", "relayd-")
	if err != nil {
		return nil, fmt.Errorf("create relay workspace: %w", err)
	}
	w := &workspace{
		dir:        dir,
		configFile: filepath.Join(dir, "config.toml"),
		dataDir:    filepath.Join(dir, "data"),
		logFile:    filepath.Join(dir, "relay.log"),
	}
	err = os.Mkdir(w.dataDir, 0o700)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("create relay data dir: %w", err)
	}
	return w, nil
}

// writeConfig renders the relay's TOML config into the workspace. The extra
// sections are merged over the generated settings, so callers can both add
// their own sections and override individual generated keys.
func (w *workspace) writeConfig(host string, port int, extra map[string]map[string]interface{}) error {
	doc := map[string]interface{}{
		"network": map[string]interface{}{
			"address": host,
			"port":    port,
		},
		"database": map[string]interface{}{
			"data_directory": w.dataDir,
		},
	}
	for name, values := range extra {
		section, ok := doc[name].(map[string]interface{})
		if !ok {
			section = map[string]interface{}{}
			doc[name] = section
		}
		for k, v := range values {
			section[k] = v
		}
	}

	b, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("write relay config: %w", err)
	}
	err = os.WriteFile(w.configFile, b, 0o600)
	if err != nil {
		return fmt.Errorf("write relay config: %w", err)
	}
	return nil
}

// remove deletes the workspace tree. Failures are logged, never returned,
// teardown must not mask the caller's own outcome.
func (w *workspace) remove(ctx context.Context) {
	err := os.RemoveAll(w.dir)
	if err != nil {
		o11y.LogError(ctx, "relayd: cleanup workspace", err, o11y.Field("dir", w.dir))
	}
}
