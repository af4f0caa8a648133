package models

type Filter struct {
	SchemaID      *uint16
	ProviderMsaID *uint64
	FromBlock     uint32
	// ToBlock is exclusive; zero means unbounded.
	ToBlock uint32
}

type PaginatedResult struct {
	Items      interface{} `json:"items"`
	TotalCount int64       `json:"total_count"`
	Page       int64       `json:"page"`
	PageSize   int64       `json:"page_size"`
}
