package speech

import "sort"

// FilterSegments applies the voice-activity post-filter: drop segments the
// model considers silence, merge spans separated by sub-threshold gaps,
// drop spans shorter than the speech minimum, then pad. The output is
// sorted by non-decreasing start time and never overlaps.
func FilterSegments(segments []Segment, cfg VADConfig) []Segment {
	if len(segments) == 0 {
		return nil
	}

	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	speech := sorted[:0]
	for _, s := range sorted {
		if cfg.NoSpeechThreshold > 0 && s.NoSpeechProb > cfg.NoSpeechThreshold {
			continue
		}
		if s.End <= s.Start {
			continue
		}
		speech = append(speech, s)
	}
	if len(speech) == 0 {
		return nil
	}

	minSilence := float64(cfg.MinSilenceMs) / 1000
	merged := []Segment{speech[0]}
	for _, s := range speech[1:] {
		last := &merged[len(merged)-1]
		if s.Start-last.End < minSilence {
			if s.Text != "" {
				last.Text += s.Text
			}
			if s.End > last.End {
				last.End = s.End
			}
			// keep the worse of the two confidences
			if s.AvgLogprob < last.AvgLogprob {
				last.AvgLogprob = s.AvgLogprob
			}
			if s.NoSpeechProb > last.NoSpeechProb {
				last.NoSpeechProb = s.NoSpeechProb
			}
			continue
		}
		merged = append(merged, s)
	}

	minSpeech := float64(cfg.MinSpeechMs) / 1000
	kept := merged[:0]
	for _, s := range merged {
		if s.End-s.Start < minSpeech {
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return nil
	}

	pad := float64(cfg.SpeechPadMs) / 1000
	for i := range kept {
		start := kept[i].Start - pad
		if start < 0 {
			start = 0
		}
		if i > 0 && start < kept[i-1].End {
			start = kept[i-1].End
		}
		kept[i].Start = start

		end := kept[i].End + pad
		if i < len(kept)-1 && end > kept[i+1].Start-pad {
			end = kept[i+1].Start - pad
			if end < kept[i].End {
				end = kept[i].End
			}
		}
		kept[i].End = end
	}

	return kept
}
