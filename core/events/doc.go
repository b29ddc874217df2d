// Package events defines the observations a session emits while it runs.
//
// Every observation has a [Kind] that doubles as its wire name, so a
// transport can forward them without a mapping table.
//
// Transcription
//
//   - PartialTranscript (partial_transcript): interim user text, replaced by
//     the next partial.
//   - UserTranscript (user_transcript): final user text for an utterance.
//
// Session state
//
//   - Status (status): listening, thinking, speaking or interrupted, plus
//     config_updated and history_cleared acknowledgements.
//   - Tasks (tasks): the full task list after a configuration change.
//   - TaskUpdate (task_update): a task was completed by the assistant.
//
// Response
//
//   - PartialResponse (partial_response): the response text generated so far
//     with completion markers removed. Each one replaces the previous.
//   - AgentResponse (agent_response): the final response text as stored in
//     the history.
//   - RetrievalResults (rag_results): references that were folded into the
//     user message.
//
// Audio
//
//   - Audio (audio): synthesized speech chunk.
//   - AudioDone (audio_done): no more audio for the current response.
//   - ClearAudio (clear_audio): discard any audio that is queued for playback.
//
// Errors
//
//   - Error (error): a collaborator failed; the session keeps running.
package events
