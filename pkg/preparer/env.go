package preparer

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/imdario/mergo"
)

// environ is this process's environment with overrides applied,
// empty values included.
func environ(overrides map[string]string) []string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if i := strings.Index(kv, "="); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	if err := mergo.Merge(&env, overrides, mergo.WithOverride); err != nil {
		// both sides are map[string]string
		panic(err)
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func venvPath(venv string) string {
	return filepath.Join(venv, "bin") + string(os.PathListSeparator) + os.Getenv("PATH")
}
