package constants

// EntityType classifies atoms produced by the deterministic extractor.
type EntityType string

const (
	EntityDate         EntityType = "DATE"
	EntityAmount       EntityType = "AMOUNT"
	EntityIdentifier   EntityType = "IDENTIFIER"
	EntityOrganization EntityType = "ORGANIZATION"
	EntityPerson       EntityType = "PERSON"
)

// EntityTypes lists all types in deterministic iteration order.
var EntityTypes = []EntityType{
	EntityDate,
	EntityAmount,
	EntityIdentifier,
	EntityOrganization,
	EntityPerson,
}
