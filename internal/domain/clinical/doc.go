// Package clinical contains the subset of the FHIR R4 resource model that the
// reconciliation engine reads from the medical records system.
//
// Only the attributes the engine consumes are modelled. Unknown attributes are
// ignored on decode, so bundles from newer servers still parse.
//
// A Bundle keeps its entries as raw JSON until Resources is called, which
// decodes each entry by its resourceType and returns the typed resources the
// engine needs for one order event.
package clinical
