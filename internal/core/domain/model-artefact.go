package domain

import "io"

const artefactKeySuffix = "/artefact"

// Artefact is the opaque payload stored for a model. It has no metadata
// record; its existence is the presence of ArtefactKey(modelID) in the
// object store. Body must be closed by the caller.
type Artefact struct {
	Key  string
	Size int64
	Body io.ReadCloser
}

// ArtefactKey is the single object-store slot owned by a model id.
func ArtefactKey(modelID string) string {
	return modelID + artefactKeySuffix
}
