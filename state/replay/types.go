package replay

import (
	"holderguard/engine/library"
)

// Consumption records which committed request used a verification document.
type Consumption struct {
	Operation string           `json:"operation"`
	HolderID  library.HolderID `json:"holder_id"`
	At        int64            `json:"at"`
}

type Mapped map[library.Sha256]Consumption
