package parser

// MaxInternPoolSize bounds the layer pool of a single import.
const MaxInternPoolSize = 4096

// layerPool interns layer names so the thousands of entities on one layer
// share a single string. One pool belongs to one import and is not shared.
type layerPool struct {
	pool map[string]string
}

func newLayerPool() *layerPool {
	return &layerPool{pool: make(map[string]string, 64)}
}

// Intern returns the canonical copy of s. Past MaxInternPoolSize distinct
// names, s is returned as is.
func (lp *layerPool) Intern(s string) string {
	if pooled, ok := lp.pool[s]; ok {
		return pooled
	}
	if len(lp.pool) >= MaxInternPoolSize {
		return s
	}
	lp.pool[s] = s
	return s
}

// Len returns the number of distinct names seen.
func (lp *layerPool) Len() int {
	return len(lp.pool)
}
