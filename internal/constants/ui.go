package constants

// HeaderSeparatorLength is the width of the separator line under headers.
const HeaderSeparatorLength = 40
