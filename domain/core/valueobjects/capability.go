package valueobjects

// Capability is a coarse operation kind a provider declares support for.
type Capability string

const (
	CapabilityRead      Capability = "read"
	CapabilityWrite     Capability = "write"
	CapabilityList      Capability = "list"
	CapabilitySearch    Capability = "search"
	CapabilityMove      Capability = "move"
	CapabilityDelete    Capability = "delete"
	CapabilityBlockRead Capability = "blockRead"
	CapabilityBlockEdit Capability = "blockEdit"
)

// LoadCapability says which content representations a provider can load.
type LoadCapability string

const (
	LoadPlainText  LoadCapability = "plainText"
	LoadStructured LoadCapability = "structured"
	LoadBoth       LoadCapability = "both"
)

// EditCapability enumerates the edit features a provider supports.
type EditCapability string

const (
	EditSearchReplaceOperations EditCapability = "searchReplaceOperations"
	EditRangeOperations         EditCapability = "rangeOperations"
	EditBlockOperations         EditCapability = "blockOperations"
	EditTextFormatting          EditCapability = "textFormatting"
	EditParagraphFormatting     EditCapability = "paragraphFormatting"
	EditTables                  EditCapability = "tables"
	EditColors                  EditCapability = "colors"
	EditFonts                   EditCapability = "fonts"
)

// SearchCapability enumerates supported search modes.
type SearchCapability string

const (
	SearchText            SearchCapability = "textSearch"
	SearchRegex           SearchCapability = "regexSearch"
	SearchStructuredQuery SearchCapability = "structuredQuerySearch"
)

// CapabilitySet is the full advertisement of a provider: a subset of each of
// the four closed enumerations.
type CapabilitySet struct {
	Coarse []Capability       `json:"coarse"`
	Load   []LoadCapability   `json:"load,omitempty"`
	Edit   []EditCapability   `json:"edit,omitempty"`
	Search []SearchCapability `json:"search,omitempty"`
}

// Has reports whether a coarse capability is advertised.
func (s CapabilitySet) Has(c Capability) bool {
	for _, v := range s.Coarse {
		if v == c {
			return true
		}
	}
	return false
}

// HasLoad reports whether a load capability is advertised.
func (s CapabilitySet) HasLoad(c LoadCapability) bool {
	for _, v := range s.Load {
		if v == c {
			return true
		}
	}
	return false
}

// HasEdit reports whether an edit capability is advertised.
func (s CapabilitySet) HasEdit(c EditCapability) bool {
	for _, v := range s.Edit {
		if v == c {
			return true
		}
	}
	return false
}

// HasSearch reports whether a search capability is advertised.
func (s CapabilitySet) HasSearch(c SearchCapability) bool {
	for _, v := range s.Search {
		if v == c {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate a provider's
// advertised set through a listing.
func (s CapabilitySet) Clone() CapabilitySet {
	out := CapabilitySet{}
	out.Coarse = append([]Capability(nil), s.Coarse...)
	out.Load = append([]LoadCapability(nil), s.Load...)
	out.Edit = append([]EditCapability(nil), s.Edit...)
	out.Search = append([]SearchCapability(nil), s.Search...)
	return out
}
