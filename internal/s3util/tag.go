package s3util

// projectTag is the URL-encoded object tagging string for cost allocation.
const projectTag = "Project=wildlife-vision"

// ProjectTagging returns a pointer to the URL-encoded object tagging string,
// for the Tagging field of PutObjectInput.
func ProjectTagging() *string {
	t := projectTag
	return &t
}
