// Copyright 2026 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dolthub/accountdb/chunks"
)

type statDesc struct {
	desc *prometheus.Desc
	get  func(chunks.Stats) uint64
}

func newStatDesc(name, help string, get func(chunks.Stats) uint64) statDesc {
	return statDesc{
		desc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "store", name), help, nil, nil),
		get:  get,
	}
}

// StoreCollector reports chunks.Stats as counters. The store is read once
// per scrape.
type StoreCollector struct {
	cs    chunks.ChunkStore
	stats []statDesc
}

var _ prometheus.Collector = (*StoreCollector)(nil)

func NewStoreCollector(cs chunks.ChunkStore) *StoreCollector {
	return &StoreCollector{
		cs: cs,
		stats: []statDesc{
			newStatDesc("chunk_reads_total", "Chunk reads.", func(s chunks.Stats) uint64 { return s.ChunkReads }),
			newStatDesc("chunk_hits_total", "Chunk reads that found the chunk.", func(s chunks.Stats) uint64 { return s.ChunkHits }),
			newStatDesc("chunk_writes_total", "Chunks written.", func(s chunks.Stats) uint64 { return s.ChunkWrites }),
			newStatDesc("written_bytes_total", "Bytes of chunk data written.", func(s chunks.Stats) uint64 { return s.BytesWritten }),
			newStatDesc("ref_reads_total", "Ref reads.", func(s chunks.Stats) uint64 { return s.RefReads }),
			newStatDesc("ref_commits_total", "Successful ref updates.", func(s chunks.Stats) uint64 { return s.RefCommits }),
			newStatDesc("ref_conflicts_total", "Ref updates rejected by compare-and-set.", func(s chunks.Stats) uint64 { return s.RefConflicts }),
		},
	}
}

func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range c.stats {
		ch <- s.desc
	}
}

func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.cs.Stats()
	for _, s := range c.stats {
		ch <- prometheus.MustNewConstMetric(s.desc, prometheus.CounterValue, float64(s.get(st)))
	}
}
