// Package temporal runs the media import workflow on Temporal.
//
// A paper uploaded with an external PDF URL is copied onto the media host
// in the background so the paper keeps working when the original link
// rots. The service starts an import through MediaImportClient:
//
//	c, err := temporal.NewClient(cfg, logger)
//	importer := temporal.NewMediaImportClient(c, cfg, logger)
//	err = importer.StartMediaImport(ctx, paperID, ownerID, sourceURL)
//
// Workflow ids are deterministic (media-import-<paper id>), so starting an
// import twice for the same paper is a no-op.
//
// The workflow itself lives in the workflows subpackage and its activities
// in activities. cmd/worker registers both on a WorkerManager.
package temporal
