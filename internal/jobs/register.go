package jobs

import "github.com/mavedb/worker/internal/decorator"

// Register binds every job function named in spec §4.6 into reg, the
// process-wide registry the worker loop dispatches against. Call once at
// startup.
func Register(reg *decorator.Registry) {
	reg.Register("create_variants_for_score_set", CreateVariantsForScoreSet)
	reg.Register("map_variants_for_score_set", MapVariantsForScoreSet)
	reg.Register("submit_score_set_mappings_to_car", SubmitScoreSetMappingsToCAR)
	reg.Register("submit_score_set_mappings_to_ldh", SubmitScoreSetMappingsToLDH)
	reg.Register("link_clingen_variants", LinkClingenVariants)
	reg.Register("link_gnomad_variants", LinkGnomadVariants)
	reg.Register("poll_uniprot_mapping_jobs_for_score_set", PollUniprotMappingJobsForScoreSet)
	reg.Register("refresh_clinvar_controls", RefreshClinvarControls)
}
