// package chords holds the verified chord chart table and the helpers that operate on progressions:
// lookup by song title, repeating a chart across a full song, playback highlighting, chord symbol
// parsing and MIDI export.
package chords
