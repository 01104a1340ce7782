package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/driversdk"
)

func TestFileMirrorWritesStateSnapshots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	m := NewFileMirror(dir)

	st := driversdk.State{Val: "77", Ack: true, Ts: time.Unix(1, 0).UTC()}
	if err := m.MirrorState(context.Background(), "benqbang.0.modelname", st); err != nil {
		t.Fatalf("MirrorState: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "state_benqbang.0.modelname.json"))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var got driversdk.State
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.Val != "77" || !got.Ack {
		t.Errorf("got %+v", got)
	}
}

func TestSanitize(t *testing.T) {
	if got := sanitize("a b/c:d.e-f_g"); got != "a_b_c_d.e-f_g" {
		t.Errorf("got %q", got)
	}
}
