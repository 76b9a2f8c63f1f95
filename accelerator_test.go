package splat

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
)

// mockAccelerator records the calls made by the renderer.
type mockAccelerator struct {
	name    string
	initErr error
	logger  *slog.Logger

	mu        sync.Mutex
	inits     int
	closed    bool
	released  int
	compacts  int
	sorts     int
	composits int
}

func (m *mockAccelerator) Name() string { return m.name }

func (m *mockAccelerator) Init() error {
	m.mu.Lock()
	m.inits++
	m.mu.Unlock()
	return m.initErr
}

func (m *mockAccelerator) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *mockAccelerator) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockAccelerator) SetLogger(l *slog.Logger) { m.logger = l }

func (m *mockAccelerator) Compact(rc *RenderContext) error {
	m.compacts++
	rc.RecordCompaction(rc.SplatCount())
	return nil
}

func (m *mockAccelerator) Sort(*RenderContext) error {
	m.sorts++
	return nil
}

func (m *mockAccelerator) Composite(rc *RenderContext) error {
	m.composits++
	rc.RecordDraw(DrawIndirectArgs{VertexCount: 6, InstanceCount: uint32(rc.VisibleCount())})
	return nil
}

func (m *mockAccelerator) Release(*RenderContext) { m.released++ }

// sharingAccelerator also accepts a device provider.
type sharingAccelerator struct {
	mockAccelerator
	provider DeviceHandle
	calls    int
	err      error
}

func (s *sharingAccelerator) SetDeviceProvider(p DeviceHandle) error {
	s.calls++
	s.provider = p
	return s.err
}

// resetAccelerator clears the global accelerator state between tests.
func resetAccelerator() {
	accelMu.Lock()
	accel = nil
	accelMu.Unlock()
}

// =============================================================================
// Registration Tests
// =============================================================================

func TestRegisterAcceleratorNil(t *testing.T) {
	resetAccelerator()

	err := RegisterAccelerator(nil)
	if err == nil {
		t.Fatal("expected error when registering nil accelerator")
	}
	if err.Error() != "splat: accelerator must not be nil" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
	if RegisteredAccelerator() != nil {
		t.Error("accelerator should remain nil after failed registration")
	}
}

func TestRegisterAcceleratorDefersInit(t *testing.T) {
	resetAccelerator()
	t.Cleanup(resetAccelerator)

	mock := &mockAccelerator{name: "deferred", initErr: errors.New("no device")}
	if err := RegisterAccelerator(mock); err != nil {
		t.Fatalf("RegisterAccelerator() = %v, want nil", err)
	}
	if mock.inits != 0 {
		t.Errorf("Init called %d times during registration, want 0", mock.inits)
	}
	if RegisteredAccelerator() != mock {
		t.Error("RegisteredAccelerator() did not return the registered accelerator")
	}
}

func TestRegisterAcceleratorReplacesAndCloses(t *testing.T) {
	resetAccelerator()
	t.Cleanup(resetAccelerator)

	first := &mockAccelerator{name: "first"}
	second := &mockAccelerator{name: "second"}
	if err := RegisterAccelerator(first); err != nil {
		t.Fatal(err)
	}
	if err := RegisterAccelerator(second); err != nil {
		t.Fatal(err)
	}
	if !first.isClosed() {
		t.Error("replaced accelerator should be closed")
	}

	// Registering the same accelerator again must not close it.
	if err := RegisterAccelerator(second); err != nil {
		t.Fatal(err)
	}
	if second.isClosed() {
		t.Error("re-registered accelerator should stay open")
	}
}

func TestSetAcceleratorDeviceProvider(t *testing.T) {
	resetAccelerator()
	t.Cleanup(resetAccelerator)

	if err := SetAcceleratorDeviceProvider(nil); err != nil {
		t.Errorf("no accelerator: error = %v, want nil", err)
	}

	if err := RegisterAccelerator(&mockAccelerator{name: "plain"}); err != nil {
		t.Fatal(err)
	}
	if err := SetAcceleratorDeviceProvider(nil); err != nil {
		t.Errorf("non-sharing accelerator: error = %v, want nil", err)
	}

	wantErr := errors.New("device busy")
	sharing := &sharingAccelerator{mockAccelerator: mockAccelerator{name: "sharing"}, err: wantErr}
	if err := RegisterAccelerator(sharing); err != nil {
		t.Fatal(err)
	}
	if err := SetAcceleratorDeviceProvider(nil); !errors.Is(err, wantErr) {
		t.Errorf("sharing accelerator: error = %v, want %v", err, wantErr)
	}
	if sharing.calls != 1 {
		t.Errorf("SetDeviceProvider called %d times, want 1", sharing.calls)
	}
}

// =============================================================================
// Backend Selection Tests
// =============================================================================

func TestNewRenderer_GPUWithoutAccelerator(t *testing.T) {
	resetAccelerator()

	r, err := NewRenderer(32, 32, WithCapacity(8), WithBackend(BackendGPU))
	if !errors.Is(err, ErrNoAccelerator) {
		t.Fatalf("NewRenderer() error = %v, want ErrNoAccelerator", err)
	}
	if r != nil {
		t.Error("NewRenderer() returned a renderer with an error")
	}
}

func TestNewRenderer_GPUInitError(t *testing.T) {
	resetAccelerator()
	t.Cleanup(resetAccelerator)

	initErr := errors.New("adapter not found")
	mock := &mockAccelerator{name: "failing", initErr: initErr}
	if err := RegisterAccelerator(mock); err != nil {
		t.Fatal(err)
	}

	r, err := NewRenderer(32, 32, WithCapacity(8), WithBackend(BackendGPU))
	if !errors.Is(err, initErr) {
		t.Fatalf("NewRenderer() error = %v, want wrapped init error", err)
	}
	if r != nil {
		t.Error("NewRenderer() must not fall back to software")
	}
}

func TestNewRenderer_GPUDrivesAccelerator(t *testing.T) {
	resetAccelerator()
	t.Cleanup(resetAccelerator)

	mock := &mockAccelerator{name: "mock-gpu"}
	if err := RegisterAccelerator(mock); err != nil {
		t.Fatal(err)
	}

	r, err := NewRenderer(32, 32, WithCapacity(8), WithBackend(BackendGPU))
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	if r.Backend() != BackendGPU || r.AcceleratorName() != "mock-gpu" {
		t.Errorf("renderer uses %v/%s", r.Backend(), r.AcceleratorName())
	}
	r.SetSplats([]Splat{testSplat(0, 0, 0, red)})
	if _, err := r.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if mock.compacts != 1 || mock.sorts != 1 || mock.composits != 1 {
		t.Errorf("stage calls = %d/%d/%d, want 1/1/1", mock.compacts, mock.sorts, mock.composits)
	}
	if got := r.Stats().Drawn; got != 1 {
		t.Errorf("Stats().Drawn = %d, want 1", got)
	}

	r.Close()
	r.Close()
	if mock.released != 1 {
		t.Errorf("Release called %d times, want 1", mock.released)
	}
	if mock.isClosed() {
		t.Error("closing a renderer must not close the shared accelerator")
	}
}

func TestBackendString(t *testing.T) {
	tests := []struct {
		b    Backend
		want string
	}{
		{BackendSoftware, "Software"},
		{BackendGPU, "GPU"},
		{Backend(7), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.b.String(); got != tt.want {
			t.Errorf("Backend(%d).String() = %q, want %q", int(tt.b), got, tt.want)
		}
	}
}
