package logging

// Structured field names shared by the batch processor and the commands.
const (
	FieldError    = "error"
	FieldPath     = "path"
	FieldOutput   = "output"
	FieldStatus   = "status"
	FieldMethods  = "methods"
	FieldDuration = "duration"
	FieldProject  = "project"
	FieldCacheDir = "cache_dir"
	FieldDryRun   = "dry_run"
	FieldJobs     = "jobs"
	FieldVersion  = "version"

	FieldFilesDiscovered = "files_discovered"
	FieldFilesRewritten  = "files_rewritten"
	FieldFilesCached     = "files_cached"
	FieldFilesFresh      = "files_fresh"
	FieldFilesFailed     = "files_failed"
	FieldFilesPruned     = "files_pruned"
)
