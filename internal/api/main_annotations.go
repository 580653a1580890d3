// @title           joe-marks API
// @version         1.0
// @description     Bookmark sync service. Authenticate with a personal access token.
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerToken
// @in              header
// @name            Authorization
// @description     Type "Bearer" followed by a space and your API token. Example: "Bearer mk_xxx"
package api
