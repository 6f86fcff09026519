package openai

// profilePrompt fixes the extraction schema: the model must return exactly
// these fields, and the resulting object is stored on the persona verbatim.
const profilePrompt = `Analyze this transcript from a video and extract a detailed persona profile.

Return a JSON object with these fields:
{
  "name": "speaker's name if mentioned",
  "tone": "formal/casual/energetic/calm/etc",
  "vocabulary_level": "simple/intermediate/advanced",
  "speech_patterns": ["list of catchphrases, fillers, recurring expressions"],
  "selling_approach": "description of how they sell/persuade",
  "personality_traits": ["trait1", "trait2", ...],
  "common_expressions": ["expression1", "expression2", ...],
  "communication_style": "description of overall style",
  "dos": ["things the persona always does"],
  "donts": ["things the persona never does"],
  "backstory_hints": "any background info gleaned from the transcript"
}

Transcript:
---
%s
---

Return ONLY valid JSON, no markdown.`
