package serializer

import (
	"bytes"
	"encoding/gob"

	"github.com/hakehuang/devlink/link/common"
)

// NewGOBSerializer creates a new serializer using gob encoding
func NewGOBSerializer() ISerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the ISerializer interface using gob encoding
type gobSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ISerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Serialize(env common.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) Deserialize(b []byte, env *common.Envelope) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(env)
}
