package rescache_test

import (
	"testing"

	"github.com/caiofalcao/rescache"
	"github.com/stretchr/testify/assert"
)

func TestGenerateKey_StableUnderReorderingAndEmptyFilter(t *testing.T) {
	a := map[string]any{"uf": "SP", "city": "Sao Paulo", "empty": ""}
	b := map[string]any{"city": "Sao Paulo", "empty": nil, "uf": "SP", "missing": nil}

	assert.Equal(t, rescache.GenerateKey("cache:cep:", a), rescache.GenerateKey("cache:cep:", b))
}

func TestGenerateKey_DistinctPrefixesNeverCollide(t *testing.T) {
	params := map[string]any{"cep": "01001000"}
	assert.NotEqual(t,
		rescache.GenerateKey("cache:cep:", params),
		rescache.GenerateKey("cache:geocoding:", params),
	)
}

func TestGenerateKey_TypeTiebreak(t *testing.T) {
	asString := rescache.GenerateKey("p:", map[string]any{"v": "1"})
	asInt := rescache.GenerateKey("p:", map[string]any{"v": 1})
	assert.NotEqual(t, asString, asInt)
}

func TestGenerateKey_HasHexDigestAfterPrefix(t *testing.T) {
	key := rescache.GenerateKey("cache:cep:", map[string]any{"cep": "01001000"})
	assert.True(t, len(key) == len("cache:cep:")+64)
}
