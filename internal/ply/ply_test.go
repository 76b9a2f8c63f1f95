// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ply

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"runtime"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/splat/core"
)

func randomSplats(r *rand.Rand, n int) []core.Splat {
	out := make([]core.Splat, n)
	for i := range out {
		axis := mgl32.Vec3{r.Float32()*2 - 1, r.Float32()*2 - 1, r.Float32()*2 - 1}
		if axis.Len() < 1e-3 {
			axis = mgl32.Vec3{0, 0, 1}
		}
		q := mgl32.QuatRotate(r.Float32()*math.Pi, axis.Normalize())
		if q.W < 0 {
			q = q.Scale(-1)
		}
		s := r.Float32()*0.045 + 0.005
		out[i] = core.Splat{
			Position: mgl32.Vec3{r.Float32()*2 - 1, r.Float32()*2 - 1, r.Float32()*2 - 1},
			Scale:    mgl32.Vec3{s, s, core.MinScale},
			Rotation: q,
			Color:    mgl32.Vec4{r.Float32(), r.Float32(), r.Float32(), r.Float32()*0.9 + 0.1},
			Normal:   q.Rotate(mgl32.Vec3{0, 0, 1}),
			PBR:      mgl32.Vec4{r.Float32(), r.Float32(), r.Float32(), r.Float32()},
		}
	}
	return out
}

type tolerance struct {
	pos, scaleRel, color, normal, pbr, rotDot float32
}

func compareSplats(t *testing.T, got, want []core.Splat, tol tolerance, checkPBR bool) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d splats, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := &got[i], &want[i]
		if !g.Position.ApproxEqualThreshold(w.Position, tol.pos) {
			t.Fatalf("splat %d: Position = %v, want %v", i, g.Position, w.Position)
		}
		for k := range 3 {
			if d := mgl32.Abs(g.Scale[k]-w.Scale[k]) / w.Scale[k]; d > tol.scaleRel {
				t.Fatalf("splat %d: Scale = %v, want %v", i, g.Scale, w.Scale)
			}
		}
		if !g.Color.ApproxEqualThreshold(w.Color, tol.color) {
			t.Fatalf("splat %d: Color = %v, want %v", i, g.Color, w.Color)
		}
		if !g.Normal.ApproxEqualThreshold(w.Normal, tol.normal) {
			t.Fatalf("splat %d: Normal = %v, want %v", i, g.Normal, w.Normal)
		}
		if d := mgl32.Abs(g.Rotation.Dot(w.Rotation)); d < tol.rotDot {
			t.Fatalf("splat %d: Rotation = %v, want %v (|dot| %v)", i, g.Rotation, w.Rotation, d)
		}
		if g.Rotation.W < 0 {
			t.Fatalf("splat %d: Rotation.W = %v, want >= 0", i, g.Rotation.W)
		}
		if checkPBR && !g.PBR.ApproxEqualThreshold(w.PBR, tol.pbr) {
			t.Fatalf("splat %d: PBR = %v, want %v", i, g.PBR, w.PBR)
		}
	}
}

// =============================================================================
// Round Trip Tests
// =============================================================================

func TestRoundTrip(t *testing.T) {
	splats := randomSplats(rand.New(rand.NewSource(1)), 1000)
	exact := tolerance{pos: 1e-6, scaleRel: 1e-4, color: 1e-4, normal: 1e-6, pbr: 1e-6, rotDot: 0.99999}

	tests := []struct {
		format   Format
		tol      tolerance
		checkPBR bool
	}{
		{Standard, exact, false},
		{PBR, exact, true},
		{CompressedPBR, tolerance{pos: 2e-3, scaleRel: 1e-2, color: 5e-3, normal: 5e-3, pbr: 3e-3, rotDot: 0.999}, true},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, splats, tt.format); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			got, format, err := Read(&buf)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if format != tt.format {
				t.Errorf("Read() format = %v, want %v", format, tt.format)
			}
			compareSplats(t, got, splats, tt.tol, tt.checkPBR)
		})
	}
}

func TestRoundTrip_Empty(t *testing.T) {
	for f := Standard; f <= CompressedPBR; f++ {
		var buf bytes.Buffer
		if err := Write(&buf, nil, f); err != nil {
			t.Fatalf("%v: Write() error = %v", f, err)
		}
		got, format, err := Read(&buf)
		if err != nil {
			t.Fatalf("%v: Read() error = %v", f, err)
		}
		if len(got) != 0 || format != f {
			t.Errorf("%v: Read() = %d splats, format %v", f, len(got), format)
		}
	}
}

func TestWrite_Deterministic(t *testing.T) {
	splats := randomSplats(rand.New(rand.NewSource(2)), 300)
	for f := Standard; f <= CompressedPBR; f++ {
		var a, b bytes.Buffer
		if err := Write(&a, splats, f); err != nil {
			t.Fatal(err)
		}
		if err := Write(&b, splats, f); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a.Bytes(), b.Bytes()) {
			t.Errorf("%v: output differs between runs", f)
		}
	}
}

func TestWrite_StandardHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, randomSplats(rand.New(rand.NewSource(3)), 2), Standard); err != nil {
		t.Fatal(err)
	}
	header, _, ok := strings.Cut(buf.String(), "end_header\n")
	if !ok {
		t.Fatal("no end_header")
	}
	for _, want := range []string{
		"format binary_little_endian 1.0",
		"element vertex 2",
		"property float f_dc_0",
		"property float opacity",
		"property float rot_3",
	} {
		if !strings.Contains(header, want) {
			t.Errorf("header missing %q", want)
		}
	}
	if strings.Contains(header, "metallic") {
		t.Error("standard header lists PBR properties")
	}
	if got, want := buf.Len()-len(header)-len("end_header\n"), 2*len(standardProps)*4; got != want {
		t.Errorf("body = %d bytes, want %d", got, want)
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, nil, Format(9)); !errors.Is(err, ErrFormat) {
		t.Errorf("Write(Format(9)) error = %v, want ErrFormat", err)
	}
}

// =============================================================================
// Reader Tests
// =============================================================================

func TestRead_ForeignLayout(t *testing.T) {
	// A 3DGS file with higher-order SH, no normals and shuffled properties.
	var buf bytes.Buffer
	buf.WriteString("ply\nformat binary_little_endian 1.0\nelement vertex 1\n")
	names := []string{"rot_0", "rot_1", "rot_2", "rot_3", "x", "y", "z", "f_dc_0", "f_dc_1", "f_dc_2",
		"f_rest_0", "opacity", "scale_0", "scale_1", "scale_2"}
	for _, n := range names {
		buf.WriteString("property float " + n + "\n")
	}
	buf.WriteString("end_header\n")
	// 90 degree rotation about X, given with negative W.
	h := float32(math.Sqrt2 / 2)
	vals := []float32{-h, -h, 0, 0, 1, 2, 3, 0, 0, 0, 7, 0, float32(math.Log(0.1)), float32(math.Log(0.2)), float32(math.Log(0.3))}
	for _, v := range vals {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}

	got, format, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if format != Standard || len(got) != 1 {
		t.Fatalf("Read() = %d splats, format %v", len(got), format)
	}
	s := got[0]
	if !s.Position.ApproxEqualThreshold(mgl32.Vec3{1, 2, 3}, 1e-6) {
		t.Errorf("Position = %v", s.Position)
	}
	if !s.Color.ApproxEqualThreshold(mgl32.Vec4{0.5, 0.5, 0.5, 0.5}, 1e-6) {
		t.Errorf("Color = %v, want gray at half opacity", s.Color)
	}
	if !s.Scale.ApproxEqualThreshold(mgl32.Vec3{0.1, 0.2, 0.3}, 1e-5) {
		t.Errorf("Scale = %v", s.Scale)
	}
	if s.Rotation.W < 0 {
		t.Errorf("Rotation.W = %v, want canonical", s.Rotation.W)
	}
	// Z rotated 90 degrees about X points down -Y.
	if !s.Normal.ApproxEqualThreshold(mgl32.Vec3{0, -1, 0}, 1e-5) {
		t.Errorf("Normal = %v, want rotated +Z", s.Normal)
	}
	if s.PBR != (mgl32.Vec4{0, 1, 1, 0}) {
		t.Errorf("PBR = %v, want defaults", s.PBR)
	}
}

func TestRead_Errors(t *testing.T) {
	var valid bytes.Buffer
	if err := Write(&valid, randomSplats(rand.New(rand.NewSource(4)), 10), PBR); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no magic", "plx\nformat binary_little_endian 1.0\nend_header\n"},
		{"ascii", "ply\nformat ascii 1.0\nelement vertex 0\nend_header\n"},
		{"no vertex", "ply\nformat binary_little_endian 1.0\nelement face 0\nend_header\n"},
		{"list property", "ply\nformat binary_little_endian 1.0\nelement vertex 1\nproperty list uchar int idx\nend_header\n"},
		{"unknown type", "ply\nformat binary_little_endian 1.0\nelement vertex 1\nproperty quad x\nend_header\n"},
		{"not gaussian", "ply\nformat binary_little_endian 1.0\nelement vertex 0\nproperty float x\nend_header\n"},
		{"truncated header", "ply\nformat binary_little_endian 1.0\nelement vertex 1\n"},
		{"truncated body", valid.String()[:valid.Len()-5]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Read(strings.NewReader(tt.input))
			if !errors.Is(err, ErrFormat) {
				t.Errorf("Read() error = %v, want ErrFormat", err)
			}
		})
	}
}

// A header that claims far more rows than the body holds must fail on the
// short body without reserving the claimed rows.
func TestRead_OverstatedCount(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("ply\nformat binary_little_endian 1.0\nelement vertex 200000000\n")
	for _, n := range []string{"x", "y", "z", "f_dc_0", "f_dc_1", "f_dc_2", "opacity",
		"scale_0", "scale_1", "scale_2", "rot_0", "rot_1", "rot_2", "rot_3"} {
		buf.WriteString("property float " + n + "\n")
	}
	buf.WriteString("end_header\n")
	buf.Write(make([]byte, 3*14*4))

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, _, err := Read(&buf)
	runtime.ReadMemStats(&after)

	if !errors.Is(err, ErrFormat) {
		t.Fatalf("Read() error = %v, want ErrFormat", err)
	}
	if grown := after.TotalAlloc - before.TotalAlloc; grown > 64<<20 {
		t.Errorf("Read() allocated %d bytes for a 3-row body", grown)
	}
}

func TestRead_ScaleFloor(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("ply\nformat binary_little_endian 1.0\nelement vertex 1\n")
	names := []string{"x", "y", "z", "f_dc_0", "f_dc_1", "f_dc_2", "opacity",
		"scale_0", "scale_1", "scale_2", "rot_0", "rot_1", "rot_2", "rot_3"}
	for _, n := range names {
		buf.WriteString("property float " + n + "\n")
	}
	buf.WriteString("end_header\n")
	// exp(-200) underflows float32 to zero.
	vals := []float32{0, 0, 0, 0, 0, 0, 0, -200, -200, float32(math.Log(0.5)), 1, 0, 0, 0}
	for _, v := range vals {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}

	got, _, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	s := got[0].Scale
	if s[0] != core.MinScale || s[1] != core.MinScale {
		t.Errorf("Scale = %v, want tangent axes at MinScale", s)
	}
	if !mgl32.FloatEqualThreshold(s[2], 0.5, 1e-6) {
		t.Errorf("Scale.z = %v, want 0.5", s[2])
	}
	if got := decodeScale(float32(math.Inf(-1))); got != core.MinScale {
		t.Errorf("decodeScale(-Inf) = %v", got)
	}
}

// =============================================================================
// Packing Tests
// =============================================================================

func TestPackRotation(t *testing.T) {
	tests := []mgl32.Quat{
		mgl32.QuatIdent(),
		mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{1, 0, 0}),
		mgl32.QuatRotate(math.Pi, mgl32.Vec3{0, 1, 0}),
		mgl32.QuatRotate(2.5, mgl32.Vec3{0, 0.6, 0.8}),
	}
	for _, q := range tests {
		got := unpackRotation(packRotation(q))
		if d := mgl32.Abs(got.Dot(q.Normalize())); d < 0.999 {
			t.Errorf("rotation %v -> %v (|dot| %v)", q, got, d)
		}
	}
}

func TestQuantize_Bounds(t *testing.T) {
	if q := quantize(-5, 0, 1, 8); q != 0 {
		t.Errorf("quantize below range = %d, want 0", q)
	}
	if q := quantize(5, 0, 1, 8); q != 255 {
		t.Errorf("quantize above range = %d, want 255", q)
	}
	if q := quantize(3, 3, 3, 11); q != 0 {
		t.Errorf("quantize empty range = %d, want 0", q)
	}
	if v := dequantize(2047, -1, 1, 11); v != 1 {
		t.Errorf("dequantize max = %v, want 1", v)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"0", Standard, false},
		{"1", PBR, false},
		{"2", CompressedPBR, false},
		{"standard", Standard, false},
		{" PBR ", PBR, false},
		{"compressed-pbr", CompressedPBR, false},
		{"3", Standard, true},
		{"splat", Standard, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
