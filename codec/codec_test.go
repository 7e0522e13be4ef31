package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vectorTable struct {
	Vectors map[uint32][][]float32 `json:"vectors" msgpack:"vectors"`
	Keys    []uint64               `json:"keys" msgpack:"keys"`
}

func TestCodecs_VectorTable(t *testing.T) {
	in := vectorTable{
		Vectors: map[uint32][][]float32{
			1: {{0.5, -1.25}, {3, 4}},
			7: {{1e-3, 2}},
		},
		Keys: []uint64{1 << 63, 42},
	}

	for _, name := range []string{"json", "go-json", "msgpack"} {
		t.Run(name, func(t *testing.T) {
			c, ok := ByName(name)
			require.True(t, ok)
			assert.Equal(t, name, c.Name())

			data, err := c.Marshal(in)
			require.NoError(t, err)

			var out vectorTable
			require.NoError(t, c.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestByName_Unknown(t *testing.T) {
	_, ok := ByName("gob")
	assert.False(t, ok)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"go-json", "json", "msgpack"}, Names())
	for _, name := range Names() {
		_, ok := ByName(name)
		assert.True(t, ok, name)
	}
}

func TestMustMarshal(t *testing.T) {
	assert.NotEmpty(t, MustMarshal(nil, []int{1, 2, 3}))
	assert.Panics(t, func() { MustMarshal(JSON{}, make(chan int)) })
}
