// Package mapper turns extraction records into CRM property maps that the
// target schema will accept.
package mapper

import "github.com/sells-group/dealsync/internal/schema"

// FieldRole classifies a key of the extraction's dynamic map.
type FieldRole int

const (
	// RoleDynamic keys pass through to the CRM as-is.
	RoleDynamic FieldRole = iota
	// RoleFixedScalar keys are produced by the fixed scalar rules and never
	// copied from the dynamic map.
	RoleFixedScalar
	// RoleListMeta keys hold summary, list or confidence data.
	RoleListMeta
	// RoleReadOnly keys name schema properties the CRM will not accept.
	RoleReadOnly
)

func (r FieldRole) String() string {
	switch r {
	case RoleDynamic:
		return "dynamic"
	case RoleFixedScalar:
		return "fixed_scalar"
	case RoleListMeta:
		return "list_meta"
	case RoleReadOnly:
		return "read_only"
	default:
		return "unknown"
	}
}

// Deal property names set by the fixed scalar rules.
const (
	PropDealName    = "dealname"
	PropAmount      = "amount"
	PropCloseDate   = "closedate"
	PropDescription = "description"
	PropDealStage   = "dealstage"
	PropPipeline    = "pipeline"
)

var fixedScalarKeys = map[string]bool{
	PropDealName:    true,
	PropAmount:      true,
	PropCloseDate:   true,
	PropDescription: true,
	PropDealStage:   true,
	PropPipeline:    true,

	"company_name":       true,
	"deal_amount":        true,
	"deal_stage":         true,
	"close_date":         true,
	"currency":           true,
	"deal_currency_code": true,
	"contact_name":       true,
	"contact_role":       true,
	"contact_email":      true,
	"contact_phone":      true,
}

var listMetaKeys = map[string]bool{
	"summary":         true,
	"pain_points":     true,
	"next_steps":      true,
	"competitors":     true,
	"objections":      true,
	"decision_makers": true,
	"confidence":      true,
	"raw_extraction":  true,
}

// Classify resolves the role of one dynamic key. sc may be nil.
func Classify(key string, sc *schema.Schema) FieldRole {
	switch {
	case fixedScalarKeys[key]:
		return RoleFixedScalar
	case listMetaKeys[key]:
		return RoleListMeta
	case sc.IsReadOnly(key):
		return RoleReadOnly
	default:
		return RoleDynamic
	}
}
