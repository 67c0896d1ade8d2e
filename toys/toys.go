// Package toys contains small example entities, one per capability the
// engine understands: generation, transformation, MIDI handling and timed
// work. They double as the test instruments for the engine's actor
// machinery.
package toys
