package runtime

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/opal-lang/pseudo/runtime/executor"
)

var update = flag.Bool("update", false, "rewrite testdata golden files")

// TestGoldenPrograms runs every testdata/*.pseudo program and compares its
// event stream with the matching .golden file. Lines of the form
// "// input: VALUE" supply INPUT values in order.
func TestGoldenPrograms(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.pseudo"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".pseudo")
		t.Run(name, func(t *testing.T) {
			src, err := os.ReadFile(path)
			require.NoError(t, err)

			res, err := Execute(context.Background(), string(src), executor.Config{
				Inputs: inputDirectives(string(src)),
			})
			require.NoError(t, err)
			got := renderEvents(res.Events)

			golden := strings.TrimSuffix(path, ".pseudo") + ".golden"
			if *update {
				require.NoError(t, os.WriteFile(golden, []byte(got), 0o644))
				return
			}
			want, err := os.ReadFile(golden)
			require.NoError(t, err)
			if diff := cmp.Diff(string(want), got); diff != "" {
				t.Errorf("%s mismatch (-want +got):\n%s", golden, diff)
			}
		})
	}
}

func inputDirectives(src string) []string {
	var inputs []string
	for _, line := range strings.Split(src, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "// input:"); ok {
			inputs = append(inputs, strings.TrimSpace(v))
		}
	}
	return inputs
}

func renderEvents(events []executor.Event) string {
	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "%s %d: %s\n", e.Kind, e.Line, e.Text)
	}
	return b.String()
}
