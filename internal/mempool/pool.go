// Package mempool provides size-classed buffer pools for the float images
// that make up image pyramids, gradient planes and detector score maps.
package mempool

import (
	"sync"
)

var (
	float32Pools sync.Map // key: size class (int), value: *sync.Pool
	boolPools    sync.Map // key: size class (int), value: *sync.Pool
)

// sizeClass rounds n up to the next multiple of 1024 with a floor of 1024.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

func poolFor[T any](pools *sync.Map, cls int) *sync.Pool {
	pAny, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return nil
	}
	return p
}

func get[T any](pools *sync.Map, n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	p := poolFor[T](pools, cls)
	if p == nil {
		return make([]T, cls)[:n]
	}
	buf, ok := p.Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

func put[T any](pools *sync.Map, buf []T) {
	if buf == nil {
		return
	}
	p := poolFor[T](pools, sizeClass(cap(buf)))
	if p == nil {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}

// GetFloat32 retrieves a zeroed []float32 of length n from the pool.
// The caller must return it via PutFloat32 when done.
func GetFloat32(n int) []float32 {
	return get[float32](&float32Pools, n)
}

// PutFloat32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat32(buf []float32) {
	put(&float32Pools, buf)
}

// GetBool retrieves a zeroed []bool of length n from the pool.
func GetBool(n int) []bool {
	return get[bool](&boolPools, n)
}

// PutBool returns a buffer to the pool. It is safe to pass a nil slice.
func PutBool(buf []bool) {
	put(&boolPools, buf)
}

// GetFloat32Multiple retrieves one buffer per requested size.
func GetFloat32Multiple(sizes []int) [][]float32 {
	if len(sizes) == 0 {
		return nil
	}
	buffers := make([][]float32, len(sizes))
	for i, size := range sizes {
		buffers[i] = GetFloat32(size)
	}
	return buffers
}

// PutFloat32Multiple returns multiple buffers to the pool.
// It is safe to pass nil slices in the array.
func PutFloat32Multiple(bufs [][]float32) {
	for _, buf := range bufs {
		PutFloat32(buf)
	}
}
