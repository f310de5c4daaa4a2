package vectorstore

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// cosineScore returns cosine similarity mapped onto [0,1]. A zero vector on
// either side scores 0.
func cosineScore(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return (cos + 1) / 2
}

// encodeJSON serializes a vector for the SQLite backend.
func encodeJSON(v []float32) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "vectorstore: encode vector")
	}
	return string(b), nil
}

// decodeJSON parses a vector stored by encodeJSON.
func decodeJSON(s string) ([]float32, error) {
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, eris.Wrap(err, "vectorstore: decode vector")
	}
	return v, nil
}

// encodePgvector renders a vector in pgvector's literal syntax: [1,2,3].
func encodePgvector(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%g", f)
	}
	sb.WriteByte(']')
	return sb.String()
}

// decodePgvector parses pgvector's text representation.
func decodePgvector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	v := make([]float32, len(parts))
	for i, p := range parts {
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%g", &f); err != nil {
			return nil, eris.Wrapf(err, "vectorstore: decode pgvector element %d", i)
		}
		v[i] = float32(f)
	}
	return v, nil
}
