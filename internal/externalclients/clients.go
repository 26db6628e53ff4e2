package externalclients

// Clients bundles every external-service client a job function may need.
// The worker loop builds one Clients value at startup and shares it across
// every dispatch, mirroring spec §4.8's "same context... external-service
// client handles" for every job function.
type Clients struct {
	VRS     VRSMapper
	CAR     AlleleRegistry
	LDH     LinkedDataHub
	Gnomad  GnomadClient
	UniProt UniProtMapper
	ClinVar ClinvarClient
}
