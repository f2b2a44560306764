package probes

import (
	"reflect"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/danmuck/wireprobe/internal/testutil/testlog"
)

type stubModule struct {
	name string
	ops  []string
}

func (s stubModule) Name() string               { return s.name }
func (s stubModule) Operations() []string       { return s.ops }
func (s stubModule) RegisterRoutes(gin.IRoutes) {}

func TestRegistrySnapshotSemantics(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	r.Register(stubModule{name: "iec104", ops: []string{"write", "probe", "read-data"}})
	r.Register(stubModule{name: "dnp3", ops: []string{"probe"}})

	if _, ok := r.Get("iec104"); !ok {
		t.Fatalf("expected iec104 module")
	}
	snap := r.All()
	delete(snap, "iec104")
	if _, ok := r.Get("iec104"); !ok {
		t.Fatalf("snapshot mutation leaked into registry")
	}

	got := r.List()
	want := []ModuleInfo{
		{Name: "dnp3", Operations: []string{"probe"}},
		{Name: "iec104", Operations: []string{"probe", "read-data", "write"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected list: %#v", got)
	}
	testlog.Logf("probes/registry: listed %d modules", len(got))
}
