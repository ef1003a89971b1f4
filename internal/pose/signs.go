package pose

// AlphabetSigns are the static fingerspelling letters the tutor can teach,
// quiz, and classify. Motion-based letters (J, Z) are excluded.
var AlphabetSigns = []string{"A", "B", "C", "E", "I", "L", "O", "V", "W", "Y"}

// CommonSigns are everyday vocabulary signs recognized in conversation
// prompts. They are motion-based and not classified from single frames.
var CommonSigns = []string{
	"HELLO", "THANK_YOU", "PLEASE", "YES", "NO",
	"HELP", "MORE", "STOP", "WATER", "NAME",
}

// IsAlphabetSign reports whether s is one of the teachable letters.
func IsAlphabetSign(s string) bool {
	for _, a := range AlphabetSigns {
		if a == s {
			return true
		}
	}
	return false
}
