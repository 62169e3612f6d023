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

package chunks

import (
	"fmt"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// Stats are the counters a ChunkStore accumulates over its lifetime.
type Stats struct {
	ChunkReads   uint64
	ChunkHits    uint64
	ChunkWrites  uint64
	BytesWritten uint64
	RefReads     uint64
	RefCommits   uint64
	RefConflicts uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("chunks: %s reads (%s hits), %s writes (%s); refs: %s reads, %s commits, %s conflicts",
		humanize.Comma(int64(s.ChunkReads)),
		humanize.Comma(int64(s.ChunkHits)),
		humanize.Comma(int64(s.ChunkWrites)),
		humanize.Bytes(s.BytesWritten),
		humanize.Comma(int64(s.RefReads)),
		humanize.Comma(int64(s.RefCommits)),
		humanize.Comma(int64(s.RefConflicts)))
}

// StatsCounter accumulates Stats. It is safe for concurrent use.
type StatsCounter struct {
	chunkReads   atomic.Uint64
	chunkHits    atomic.Uint64
	chunkWrites  atomic.Uint64
	bytesWritten atomic.Uint64
	refReads     atomic.Uint64
	refCommits   atomic.Uint64
	refConflicts atomic.Uint64
}

func (sc *StatsCounter) ChunkRead(hit bool) {
	sc.chunkReads.Add(1)
	if hit {
		sc.chunkHits.Add(1)
	}
}

func (sc *StatsCounter) ChunkWritten(size int) {
	sc.chunkWrites.Add(1)
	sc.bytesWritten.Add(uint64(size))
}

func (sc *StatsCounter) RefRead() {
	sc.refReads.Add(1)
}

func (sc *StatsCounter) RefCommit(conflicted bool) {
	if conflicted {
		sc.refConflicts.Add(1)
	} else {
		sc.refCommits.Add(1)
	}
}

func (sc *StatsCounter) Snapshot() Stats {
	return Stats{
		ChunkReads:   sc.chunkReads.Load(),
		ChunkHits:    sc.chunkHits.Load(),
		ChunkWrites:  sc.chunkWrites.Load(),
		BytesWritten: sc.bytesWritten.Load(),
		RefReads:     sc.refReads.Load(),
		RefCommits:   sc.refCommits.Load(),
		RefConflicts: sc.refConflicts.Load(),
	}
}
