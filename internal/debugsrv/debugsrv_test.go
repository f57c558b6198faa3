package debugsrv

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/edirooss/procman-deputy/internal/introspect"
	"github.com/edirooss/procman-deputy/internal/wire"
)

type fakeSource struct {
	info wire.Info
	mark introspect.Snapshot
}

func (f fakeSource) LastInfo() wire.Info            { return f.info }
func (f fakeSource) LastMark() introspect.Snapshot { return f.mark }

func TestHandleCommandsServesLastInfo(t *testing.T) {
	src := fakeSource{info: wire.Info{Host: "h", Cmds: []wire.InfoCmd{{SheriffID: 1}}}}
	s := New(zap.NewNop(), src)

	req := httptest.NewRequest(http.MethodGet, "/debug/commands", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestHandleMarksServesLastMark(t *testing.T) {
	src := fakeSource{mark: introspect.Snapshot{OrdersSeen: 5}}
	s := New(zap.NewNop(), src)

	req := httptest.NewRequest(http.MethodGet, "/debug/marks", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
