package leetcode

var allContestsQuery = `
{
  allContests {
    title
    titleSlug
    startTime
    duration
  }
}
`
