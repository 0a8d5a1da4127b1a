package resultcache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/docluster/model"
)

const (
	namePrefix = "results/"
	nameSuffix = ".dcr"
)

// Name returns the blob name of a cache key.
func Name(key model.CacheKey) string {
	return fmt.Sprintf("%s%s-k%d%s", namePrefix, key.Fingerprint, key.TargetK, nameSuffix)
}

// ParseName reverses Name.
func ParseName(name string) (model.CacheKey, error) {
	base, ok := strings.CutPrefix(name, namePrefix)
	if ok {
		base, ok = strings.CutSuffix(base, nameSuffix)
	}
	i := strings.LastIndex(base, "-k")
	if !ok || i <= 0 {
		return model.CacheKey{}, fmt.Errorf("resultcache: not a result blob: %q", name)
	}
	k, err := strconv.Atoi(base[i+2:])
	if err != nil {
		return model.CacheKey{}, fmt.Errorf("resultcache: not a result blob: %q", name)
	}
	return model.CacheKey{Fingerprint: base[:i], TargetK: k}, nil
}
