// Package nodes contains the built-in pipeline stages for the code
// generation pipeline: documentation fetching, prompt construction,
// model invocation, and response evaluation with a bounded feedback
// loop. Each stage implements node.Handler and is installed into a
// node.Registry via Register.
package nodes
