//go:build !nogpu

package gpu

import (
	"testing"

	"github.com/gogpu/splat"
)

func TestRegistersAccelerator(t *testing.T) {
	a := splat.RegisteredAccelerator()
	if a == nil {
		t.Fatal("importing gpu should register an accelerator")
	}
	if a.Name() != "splat-compute" {
		t.Errorf("registered %q, want splat-compute", a.Name())
	}
}
