package ir

// AnalyzerVersion is the pdatrace analyzer version. It is reported by the
// CLI and the /health endpoint unless overridden at link time.
const AnalyzerVersion = "0.3.0"
