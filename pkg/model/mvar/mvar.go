//nolint:revive // exported
package mvar

import (
	"the-dev-tools/apiconsole/pkg/idwrap"
)

// Var is one entry of the session variable map.
type Var struct {
	ID          idwrap.IDWrap `json:"id"`
	EnvID       idwrap.IDWrap `json:"env_id"`
	VarKey      string        `json:"var_key"`
	Value       string        `json:"value"`
	Enabled     bool          `json:"enabled"`
	Description string        `json:"description"`
}

func (v Var) IsEnabled() bool {
	return v.Enabled
}
