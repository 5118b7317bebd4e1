package script

// BranchTargets извлекает цели веток из последней строки choose: и нормализует их.
// Для end; и некорректных строк возвращает пустой список.
func BranchTargets(text string) []SliceID {
	lines := SplitLines(text)
	if len(lines) == 0 {
		return nil
	}
	last := lines[len(lines)-1]
	if Classify(last) != KindChoose {
		return nil
	}
	branches, _ := ParseChoose(last)
	seen := make(map[SliceID]struct{}, len(branches))
	out := make([]SliceID, 0, len(branches))
	for _, b := range branches {
		id, err := NormalizeSliceID(b.Target)
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
