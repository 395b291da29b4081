package appidentityassets

import _ "embed"

// YAML mirrors `.fulmen/app.yaml` so the binary still knows who it is when run
// outside the repository.
//
//go:embed app.yaml
var YAML []byte
