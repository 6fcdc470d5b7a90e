package hmap

import (
	"context"
	"fmt"
	"testing"
)

var (
	testDataSmall [8]string
	testData      [128]string
	testDataLarge [128 << 10]string
)

func init() {
	for i := range testDataSmall {
		testDataSmall[i] = fmt.Sprintf("%b", i)
	}
	for i := range testData {
		testData[i] = fmt.Sprintf("%b", i)
	}
	for i := range testDataLarge {
		testDataLarge[i] = fmt.Sprintf("%b", i)
	}
}

func BenchmarkMapGetSmall(b *testing.B) {
	benchmarkMapGet(b, testDataSmall[:])
}

func BenchmarkMapGet(b *testing.B) {
	benchmarkMapGet(b, testData[:])
}

func BenchmarkMapGetLarge(b *testing.B) {
	benchmarkMapGet(b, testDataLarge[:])
}

func benchmarkMapGet(b *testing.B, data []string) {
	b.ReportAllocs()
	m := MustNew[string, int]()
	for i := range data {
		m.Put(data[i], i)
	}
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		_, _ = m.Get(data[i])
		i++
		if i >= len(data) {
			i = 0
		}
	}
}

func BenchmarkMapPut(b *testing.B) {
	benchmarkMapPut(b, testData[:])
}

func BenchmarkMapPutLarge(b *testing.B) {
	benchmarkMapPut(b, testDataLarge[:])
}

func benchmarkMapPut(b *testing.B, data []string) {
	b.ReportAllocs()
	m := MustNew[string, int]()
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		m.Put(data[i], n)
		i++
		if i >= len(data) {
			i = 0
		}
	}
}

func BenchmarkMapPutRemove(b *testing.B) {
	b.ReportAllocs()
	m := MustNew[string, int]()
	data := testData[:]
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		m.Put(data[i], n)
		m.Remove(data[(i+len(data)/2)%len(data)])
		i++
		if i >= len(data) {
			i = 0
		}
	}
}

func BenchmarkMapGetTreeBin(b *testing.B) {
	b.ReportAllocs()
	m := MustNew[int, int](WithKeyHash(func(k int) uint32 { return uint32(k % 8) }))
	const numEntries = 4096
	for i := 0; i < numEntries; i++ {
		m.Put(i, i)
	}
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		_, _ = m.Get(n % numEntries)
	}
}

func BenchmarkMapRange(b *testing.B) {
	b.ReportAllocs()
	m := MustNew[string, int]()
	for i := range testDataLarge {
		m.Put(testDataLarge[i], i)
	}
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		m.Range(func(string, int) bool { return true })
	}
}

func BenchmarkMapParallelRange(b *testing.B) {
	b.ReportAllocs()
	m := MustNew[string, int]()
	for i := range testDataLarge {
		m.Put(testDataLarge[i], i)
	}
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		_, _ = m.ParallelRange(context.Background(), 0, func(string, int) error { return nil })
	}
}

func BenchmarkLinkedMapLRU(b *testing.B) {
	b.ReportAllocs()
	lm, err := NewLinkedMap[string, int](true, WithRemoveEldest(func(size int, _ string, _ int) bool {
		return size > 1024
	}))
	if err != nil {
		b.Fatal(err)
	}
	data := testDataLarge[:]
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		k := data[n%len(data)]
		if _, ok := lm.Get(k); !ok {
			lm.Put(k, n)
		}
	}
}
