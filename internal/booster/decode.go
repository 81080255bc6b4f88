package booster

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed artifact.schema.json
var artifactSchema []byte

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(artifactSchema))
})

// maxArtifactSize bounds an artifact on disk and after decompression.
var maxArtifactSize = 256 << 20

type artifact struct {
	Format    string       `json:"format"`
	Name      string       `json:"name"`
	Objective string       `json:"objective"`
	BaseScore float64      `json:"base_score"`
	Threshold *float64     `json:"threshold"`
	Features  []featureDef `json:"features"`
	Trees     []treeDef    `json:"trees"`
}

type featureDef struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Categories []string `json:"categories"`
}

type treeDef struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeNode is one node of an exported tree. Children always come after
// their parent in the node list.
type TreeNode struct {
	IsLeaf     bool    `json:"is_leaf"`
	Value      float64 `json:"value"`
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	Categories []int   `json:"categories,omitempty"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
}

// Decode parses a raw artifact, gzip-compressed or not.
func Decode(raw []byte) (*Booster, error) {
	raw, err := inflate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile artifact schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrCorruptModel, strings.Join(msgs, "; "))
	}

	var a artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}
	b, err := build(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}
	return b, nil
}

func inflate(raw []byte) ([]byte, error) {
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, int64(maxArtifactSize)+1))
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	if len(out) > maxArtifactSize {
		return nil, fmt.Errorf("artifact larger than %d bytes", maxArtifactSize)
	}
	return out, nil
}

func build(a artifact) (*Booster, error) {
	b := &Booster{
		name:      a.Name,
		baseScore: a.BaseScore,
		threshold: defaultThreshold,
		features:  make([]feature, len(a.Features)),
		trees:     make([]tree, len(a.Trees)),
	}
	if a.Threshold != nil {
		b.threshold = *a.Threshold
	}

	seen := make(map[string]bool, len(a.Features))
	for i, fs := range a.Features {
		if seen[fs.Name] {
			return nil, fmt.Errorf("duplicate feature %q", fs.Name)
		}
		seen[fs.Name] = true

		f := feature{name: fs.Name}
		if fs.Type == "categorical" {
			if len(fs.Categories) == 0 {
				return nil, fmt.Errorf("categorical feature %q has no categories", fs.Name)
			}
			f.kind = kindCategorical
			f.codes = make(map[string]int, len(fs.Categories))
			for code, c := range fs.Categories {
				f.codes[c] = code
			}
		} else if len(fs.Categories) > 0 {
			return nil, fmt.Errorf("numeric feature %q lists categories", fs.Name)
		}
		b.features[i] = f
	}

	for ti, ts := range a.Trees {
		t := make(tree, len(ts.Nodes))
		for ni, n := range ts.Nodes {
			if n.IsLeaf {
				t[ni] = node{leaf: true, value: n.Value}
				continue
			}
			if n.FeatureIdx >= len(b.features) {
				return nil, fmt.Errorf("tree %d node %d: feature index %d out of range", ti, ni, n.FeatureIdx)
			}
			for _, child := range []int{n.LeftChild, n.RightChild} {
				if child <= ni || child >= len(ts.Nodes) {
					return nil, fmt.Errorf("tree %d node %d: invalid child %d", ti, ni, child)
				}
			}
			f := b.features[n.FeatureIdx]
			nd := node{
				featureIdx: n.FeatureIdx,
				threshold:  n.Threshold,
				left:       n.LeftChild,
				right:      n.RightChild,
			}
			if f.kind == kindCategorical {
				if len(n.Categories) == 0 {
					return nil, fmt.Errorf("tree %d node %d: categorical split without categories", ti, ni)
				}
				for _, code := range n.Categories {
					if code >= len(f.codes) {
						return nil, fmt.Errorf("tree %d node %d: category code %d out of range", ti, ni, code)
					}
				}
				nd.categorical = true
				nd.categories = append([]int(nil), n.Categories...)
			} else if len(n.Categories) > 0 {
				return nil, fmt.Errorf("tree %d node %d: numeric split with categories", ti, ni)
			}
			t[ni] = nd
		}
		b.trees[ti] = t
	}

	return b, nil
}
