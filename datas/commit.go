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
//
// This file incorporates work covered by the following copyright and
// permission notice:
//
// Copyright 2016 Attic Labs, Inc. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package datas

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/hash"
)

var ErrNameNotConfigured = errors.New("Aborting commit due to empty committer name. Is your config set?")
var ErrEmailNotConfigured = errors.New("Aborting commit due to empty committer email. Is your config set?")
var ErrEmptyCommitMessage = errors.New("Aborting commit due to empty commit message.")

// CommitterDate is the function used to get the committer time when creating commits.
var CommitterDate = time.Now

// CommitMeta contains all the metadata that is associated with a commit.
type CommitMeta struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Description    string `json:"desc"`
	Timestamp      int64  `json:"timestamp"`
	CommitterName  string `json:"committer_name,omitempty"`
	CommitterEmail string `json:"committer_email,omitempty"`

	// Trailers are key/value footers attached to the commit message.
	Trailers map[string]string `json:"trailers,omitempty"`
}

// NewCommitMeta creates a CommitMeta instance from a name, email, and
// description and uses the current time for the timestamp.
func NewCommitMeta(name, email, desc string) (*CommitMeta, error) {
	return NewCommitMetaWithAuthorCommitter(name, email, desc, CommitterDate(), "", "")
}

// NewCommitMetaWithAuthorCommitter creates commit metadata with separate
// author and committer information. If committer info is empty, it defaults
// to the author.
func NewCommitMetaWithAuthorCommitter(authorName, authorEmail, desc string, ts time.Time, committerName, committerEmail string) (*CommitMeta, error) {
	an := strings.TrimSpace(authorName)
	ae := strings.TrimSpace(authorEmail)
	d := strings.TrimSpace(desc)

	if an == "" {
		return nil, ErrNameNotConfigured
	}
	if ae == "" {
		return nil, ErrEmailNotConfigured
	}
	if d == "" {
		return nil, ErrEmptyCommitMessage
	}

	cn := strings.TrimSpace(committerName)
	ce := strings.TrimSpace(committerEmail)
	if cn == "" {
		cn = an
	}
	if ce == "" {
		ce = ae
	}

	return &CommitMeta{
		Name:           an,
		Email:          ae,
		Description:    d,
		Timestamp:      ts.UnixMilli(),
		CommitterName:  cn,
		CommitterEmail: ce,
	}, nil
}

// WithTrailer returns a copy of cm carrying the trailer |key|: |value|.
func (cm CommitMeta) WithTrailer(key, value string) CommitMeta {
	trailers := make(map[string]string, len(cm.Trailers)+1)
	for k, v := range cm.Trailers {
		trailers[k] = v
	}
	trailers[key] = value
	cm.Trailers = trailers
	return cm
}

// WithDescription returns a copy of cm with its message replaced.
func (cm CommitMeta) WithDescription(desc string) CommitMeta {
	cm.Description = desc
	return cm
}

// Time returns the commit timestamp.
func (cm CommitMeta) Time() time.Time {
	return time.UnixMilli(cm.Timestamp)
}

func (cm CommitMeta) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <%s> %s\n\n%s", cm.Name, cm.Email, cm.Time().Format(time.RFC3339), cm.Description)
	if len(cm.Trailers) > 0 {
		keys := make([]string, 0, len(cm.Trailers))
		for k := range cm.Trailers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "\n%s: %s", k, cm.Trailers[k])
		}
	}
	return sb.String()
}

// Commit is an immutable snapshot of a tree plus its history.
type Commit struct {
	Tree    hash.Hash   `json:"tree"`
	Parents []hash.Hash `json:"parents"`
	Meta    CommitMeta  `json:"meta"`

	addr hash.Hash
}

// Addr returns the address the commit is stored at.
func (c Commit) Addr() hash.Hash {
	return c.addr
}

// IsZero reports whether c is the zero Commit, i.e. no commit at all.
func (c Commit) IsZero() bool {
	return c.addr.IsEmpty()
}

// Parent returns the first parent, or the empty hash for a root commit.
func (c Commit) Parent() hash.Hash {
	if len(c.Parents) == 0 {
		return hash.Hash{}
	}
	return c.Parents[0]
}

func newCommitChunk(tree hash.Hash, parents []hash.Hash, meta CommitMeta) (Commit, chunks.Chunk, error) {
	c := Commit{Tree: tree, Parents: parents, Meta: meta}
	if c.Parents == nil {
		c.Parents = []hash.Hash{}
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return Commit{}, chunks.Chunk{}, err
	}
	chk := encodeObject(CommitKind, payload)
	c.addr = chk.Hash()
	return c, chk, nil
}

func decodeCommit(chk chunks.Chunk, h hash.Hash) (Commit, error) {
	payload, err := decodeObject(chk, h, CommitKind)
	if err != nil {
		return Commit{}, err
	}
	var c Commit
	if err := json.Unmarshal(payload, &c); err != nil {
		return Commit{}, fmt.Errorf("decoding commit %s: %w", h, err)
	}
	c.addr = h
	return c, nil
}
