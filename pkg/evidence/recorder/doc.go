// Package recorder turns twin events into evidence records.
//
// A Recorder owns a buffered channel and one worker goroutine. Observer
// adapts it to twin.Observer, so wiring evidence into an episode is one call:
//
//	rec := recorder.NewRecorder(store, recorder.DefaultConfig(), logger)
//	defer rec.Close()
//	tw.AddObserver(rec.Observer(runner.EpisodeID(), scenario.Name))
//
// Each record carries a SHA-256 content hash (HashRecord) so exported
// evidence can be checked with Verify. Records of one episode are numbered
// (Seq) and linked to their predecessor's hash (PrevHash); VerifyEpisode
// walks that chain and reports missing, duplicated or rewritten records.
// Call EndEpisode when an episode finishes to release its chain state.
package recorder
