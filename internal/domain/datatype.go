package domain

import (
	"sort"
	"strings"
	"sync"
)

// DataTypeInfo describes a registered document type. Registration only adds
// presentation metadata; access control never depends on the type, so unknown
// types flow through the system untouched.
type DataTypeInfo struct {
	Name  string
	Label string
}

var (
	dataTypesMu sync.RWMutex
	dataTypes   = map[string]DataTypeInfo{}
)

// Built-in document types shipped with the service. The set is open: callers
// may register more at startup, and unregistered type names remain valid.
const (
	DataTypeTranscript      = "transcript"
	DataTypeAssessment      = "assessment"
	DataTypeCoachingModel   = "coaching_model"
	DataTypeOrganizationDoc = "organization_doc"
	DataTypeGoal            = "goal"
	DataTypeNote            = "note"
)

func init() {
	RegisterDataType(DataTypeInfo{Name: DataTypeTranscript, Label: "Session transcript"})
	RegisterDataType(DataTypeInfo{Name: DataTypeAssessment, Label: "Assessment"})
	RegisterDataType(DataTypeInfo{Name: DataTypeCoachingModel, Label: "Coaching framework"})
	RegisterDataType(DataTypeInfo{Name: DataTypeOrganizationDoc, Label: "Organization document"})
	RegisterDataType(DataTypeInfo{Name: DataTypeGoal, Label: "Goal"})
	RegisterDataType(DataTypeInfo{Name: DataTypeNote, Label: "Note"})
}

// RegisterDataType adds or replaces a document type registration.
func RegisterDataType(info DataTypeInfo) {
	name := strings.TrimSpace(strings.ToLower(info.Name))
	if name == "" {
		return
	}
	info.Name = name
	if info.Label == "" {
		info.Label = name
	}
	dataTypesMu.Lock()
	dataTypes[name] = info
	dataTypesMu.Unlock()
}

// LookupDataType returns the registration for name. Unknown names yield a
// registration with the name echoed as label, so callers never need to treat
// unregistered types specially.
func LookupDataType(name string) DataTypeInfo {
	name = strings.TrimSpace(strings.ToLower(name))
	dataTypesMu.RLock()
	info, ok := dataTypes[name]
	dataTypesMu.RUnlock()
	if !ok {
		return DataTypeInfo{Name: name, Label: name}
	}
	return info
}

// DataTypes returns all registered types sorted by name.
func DataTypes() []DataTypeInfo {
	dataTypesMu.RLock()
	out := make([]DataTypeInfo, 0, len(dataTypes))
	for _, info := range dataTypes {
		out = append(out, info)
	}
	dataTypesMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
